package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jfmyers9/playerhub/internal/discord"
	"github.com/jfmyers9/playerhub/internal/hub"
	"github.com/jfmyers9/playerhub/internal/rules"
	"github.com/jfmyers9/playerhub/internal/schedule"
	"github.com/jfmyers9/playerhub/internal/scrobbler"
	"github.com/jfmyers9/playerhub/internal/state"
	"github.com/jfmyers9/playerhub/internal/storage"
	"github.com/jfmyers9/playerhub/pkg/lastfm"
)

// DefaultShutdownTimeout bounds the wait for the HTTP server and for
// in-flight remote calls on shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds daemon configuration
type Config struct {
	ListenAddr      string        // Address for the websocket and control API
	DatabasePath    string        // SQLite file for settings and the retry cache
	SyncPath        string        // Synced settings file, empty to disable
	LastFM          lastfm.Config // API credentials; the session key comes from localSettings
	Lyrics          rules.LyricsProvider
	Discord         discord.Config // Rich Presence, disabled without AppID
	Clock           schedule.Clock
	ShutdownTimeout time.Duration
}

// Daemon owns the stores, the player hub, the rules and the HTTP server.
type Daemon struct {
	config   Config
	db       *storage.SQLite
	state    *state.State
	client   *scrobbler.Client
	cache    *scrobbler.Cache
	hub      *hub.Hub
	rules    *rules.Rules
	presence *discord.Presence
	server   *http.Server
	logger   zerolog.Logger

	mu   sync.Mutex
	addr net.Addr

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds every component and binds the rules. On error everything
// already opened is closed again.
func New(cfg Config, logger zerolog.Logger) (*Daemon, error) {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	d := &Daemon{
		config: cfg,
		logger: logger.With().Str("component", "daemon").Logger(),
	}
	if err := d.init(logger); err != nil {
		_ = d.Shutdown()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) init(logger zerolog.Logger) error {
	cfg := d.config
	var err error

	if d.db, err = storage.Open(cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if d.state, err = state.New(d.db, logger, state.Options{Clock: cfg.Clock}); err != nil {
		return fmt.Errorf("failed to create state: %w", err)
	}

	if cfg.SyncPath != "" {
		file := storage.NewSyncFile(cfg.SyncPath)
		if err := d.state.BindSync(file.Store(state.SettingsStore)); err != nil {
			return fmt.Errorf("failed to bind settings sync: %w", err)
		}
		d.logger.Info().Str("path", file.Path()).Msg("Settings sync available")
	}

	lfm := cfg.LastFM
	if lfm.Logger == nil {
		lfm.Logger = lastfmLogger{logger.With().Str("component", "lastfm").Logger()}
	}
	if d.client, err = scrobbler.New(lfm); err != nil {
		return err
	}

	if d.cache, err = scrobbler.NewCache(d.db.DB()); err != nil {
		return fmt.Errorf("failed to create scrobble cache: %w", err)
	}

	d.hub = hub.New(d.state, logger)
	d.rules = rules.New(rules.Config{
		State:  d.state,
		Hub:    d.hub,
		Remote: d.client,
		Cache:  d.cache,
		Lyrics: cfg.Lyrics,
		Clock:  cfg.Clock,
		Logger: logger,
	})
	if err := d.rules.Bind(); err != nil {
		return fmt.Errorf("failed to bind rules: %w", err)
	}

	if cfg.Discord.AppID != "" {
		dc := cfg.Discord
		dc.Logger = logger
		d.presence = discord.New(dc, d.state)
		if err := d.presence.Bind(); err != nil {
			return fmt.Errorf("failed to bind discord presence: %w", err)
		}
	}

	ws, err := hub.NewWebsocketHandler(d.hub)
	if err != nil {
		return fmt.Errorf("failed to create websocket handler: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /ws", ws)
	hub.NewAPI(d.hub).Register(mux)

	d.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Handler returns the HTTP handler serving /ws and /api.
func (d *Daemon) Handler() http.Handler {
	return d.server.Handler
}

// State exposes the stores.
func (d *Daemon) State() *state.State {
	return d.state
}

// Addr returns the listening address once Run has started, or nil.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Run serves until ctx is cancelled or a shutdown signal arrives.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		select {
		case <-sigChan:
			d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
			os.Exit(1)
		case <-time.After(d.config.ShutdownTimeout * 2):
		}
	}()

	return d.run(ctx)
}

// run serves HTTP until ctx is done.
func (d *Daemon) run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.config.ListenAddr, err)
	}
	d.mu.Lock()
	d.addr = ln.Addr()
	d.mu.Unlock()

	d.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting daemon")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if d.presence != nil {
		g.Go(func() error {
			return d.presence.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
		defer cancel()

		// Websocket connections are hijacked and outlive Shutdown.
		d.hub.Close()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Shutdown unbinds the rules, waits for in-flight remote calls, closes
// the stores and the database. It is safe to call more than once.
func (d *Daemon) Shutdown() error {
	d.shutdownOnce.Do(func() {
		d.logger.Info().Msg("Shutting down daemon")

		if d.presence != nil {
			d.presence.Unbind()
		}
		if d.rules != nil {
			ctx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
			d.rules.Close(ctx)
			cancel()
		}
		if d.state != nil {
			d.state.Close()
		}
		if d.db != nil {
			if err := d.db.Close(); err != nil {
				d.shutdownErr = fmt.Errorf("failed to close database: %w", err)
			}
		}
	})
	return d.shutdownErr
}

// lastfmLogger adapts zerolog to the lastfm debug logger.
type lastfmLogger struct {
	logger zerolog.Logger
}

func (l lastfmLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}
