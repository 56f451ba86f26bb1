package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// apiAddr overrides the daemon address from the config file
var apiAddr string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playerhub",
	Short: "Companion daemon for a web music player",
	Long: `playerhub connects to a web music player page over a websocket and
keeps its state in observable property stores.

The daemon scrobbles to Last.fm, mirrors ratings as loves, persists
settings in SQLite and can sync them through a shared folder.

The CLI talks to the running daemon: query the current song (useful for
tmux status lines), send player commands and edit settings.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "", "Daemon address (default: listen_addr from config)")
}
