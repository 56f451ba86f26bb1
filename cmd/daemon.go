package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jfmyers9/playerhub/internal/config"
	"github.com/jfmyers9/playerhub/internal/daemon"
	"github.com/jfmyers9/playerhub/internal/discord"
	"github.com/jfmyers9/playerhub/pkg/lastfm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	daemonLogFile  string
	daemonLogLevel string
	daemonDataDir  string
	daemonListen   string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the player hub daemon",
	Long: `Run the daemon that the player page connects to.

The daemon will:
- Accept one player connection at a time on /ws and park the others
- Mirror the player and song state into property stores
- Scrobble songs to Last.fm once the configured share has been played
- Cache failed scrobbles and retry them in one batch
- Persist settings in SQLite and optionally sync them through sync_dir
- Serve the control API used by the other commands
- Handle graceful shutdown on SIGINT/SIGTERM

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "", "Log level (debug, info, warn, error) (default: log_level from config)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Directory of the settings database (default: data_dir from config)")
	daemonCmd.Flags().StringVar(&daemonListen, "listen", "", "Listen address (default: listen_addr from config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if daemonDataDir != "" {
		cfg.DataDir = daemonDataDir
	}
	if daemonListen != "" {
		cfg.ListenAddr = daemonListen
	}
	if daemonLogLevel != "" {
		cfg.LogLevel = daemonLogLevel
	}

	if cfg.LastFM.APIKey == "" || cfg.LastFM.APISecret == "" {
		return fmt.Errorf("Last.fm API credentials not configured. Run 'playerhub auth' first")
	}

	logger, closeLog := setupLogger(daemonLogFile, cfg.LogLevel)
	defer closeLog()

	logger.Info().
		Str("version", version).
		Msg("Starting playerhub daemon")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logger.Info().Str("data_dir", cfg.DataDir).Msg("Using data directory")

	d, err := daemon.New(daemon.Config{
		ListenAddr:   cfg.ListenAddr,
		DatabasePath: cfg.DatabasePath(),
		SyncPath:     cfg.SyncPath(),
		LastFM: lastfm.Config{
			APIKey:    cfg.LastFM.APIKey,
			APISecret: cfg.LastFM.APISecret,
		},
		Discord: discord.Config{
			AppID:      cfg.Discord.AppID,
			PlayerName: cfg.Discord.PlayerName,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	// Run daemon (blocks until shutdown signal)
	runErr := d.Run(context.Background())

	// Graceful shutdown
	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return fmt.Errorf("daemon error: %w", runErr)
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// setupLogger creates a logger with the specified configuration. The
// returned func closes the log file, if any.
func setupLogger(logFile, logLevel string) (zerolog.Logger, func()) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	closeFn := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			output = f
			closeFn = func() { _ = f.Close() }
		}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, closeFn
}
