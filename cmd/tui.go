package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/playerhub/internal/hub"
	"github.com/jfmyers9/playerhub/internal/tui"
)

var tuiRefresh time.Duration

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Display a terminal UI for the connected player",
	Long: `Display a terminal user interface showing the song playing in the
connected player, with live scrobble progress from the daemon.

The TUI includes:
- Now playing display with title, artist, album, rating and love state
- Progress bar showing playback position
- Scrobble progress and the logged in user
- The last songs played and whether they were scrobbled

Keys: space play/pause, n/p next/previous, s shuffle, r repeat,
0-5 rate, +/- volume, q quit.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().DurationVar(&tuiRefresh, "refresh", tui.DefaultConfig().RefreshRate, "How often to poll the daemon")
}

func runTUI(cmd *cobra.Command, args []string) error {
	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	app := tui.New(tuiClient{api}, tui.Config{RefreshRate: tuiRefresh})
	return app.Run(context.Background())
}

// tuiClient exposes the API client to the TUI.
type tuiClient struct {
	api *apiClient
}

func (c tuiClient) State(ctx context.Context) (*hub.StateResponse, error) {
	return c.api.state(ctx)
}

func (c tuiClient) Execute(ctx context.Context, command string, options any) error {
	return c.api.execute(ctx, command, options)
}
