package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/playerhub/internal/hub"
)

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse <link>",
	Short: "List the entries behind a player link",
	Long: `Ask the connected player for the list behind a link (for example
"albums" or an artist link) and print it once the player answers.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

// openCmd represents the open command
var openCmd = &cobra.Command{
	Use:   "open <link>",
	Short: "Navigate the player to a link",
	Args:  cobra.ExactArgs(1),
	RunE:  navigateCommand(hub.NavigateSelect),
}

// playlistCmd represents the playlist command
var playlistCmd = &cobra.Command{
	Use:   "playlist <link>",
	Short: "Start playback of the list behind a link",
	Args:  cobra.ExactArgs(1),
	RunE:  navigateCommand(hub.NavigatePlay),
}

// resumeCmd represents the resume command
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a song where it stopped",
	Long: `Ask the connected player to find a song by album link, artist and
title and continue it at the given position (0-1 of its duration).`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(playlistCmd)
	rootCmd.AddCommand(resumeCmd)

	browseCmd.Flags().String("search", "", "Filter the list")
	browseCmd.Flags().Bool("omit-unknown-albums", false, "Leave out albums without a name")
	browseCmd.Flags().Duration("wait", 5*time.Second, "How long to wait for the player's answer")

	resumeCmd.Flags().String("album-link", "", "Link of the song's album")
	resumeCmd.Flags().String("artist", "", "Song artist")
	resumeCmd.Flags().String("title", "", "Song title")
	resumeCmd.Flags().String("duration", "", "Song duration as m:ss")
	resumeCmd.Flags().Float64("position", 0, "Position to continue at, 0-1")
	_ = resumeCmd.MarkFlagRequired("artist")
	_ = resumeCmd.MarkFlagRequired("title")
}

func navigateCommand(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		api, _, err := clientFromConfig()
		if err != nil {
			return err
		}
		if err := api.navigate(ctx, hub.NavigateRequest{Action: action, Link: args[0]}); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", args[0], err)
		}
		return nil
	}
}

func runBrowse(cmd *cobra.Command, args []string) error {
	search, _ := cmd.Flags().GetString("search")
	omit, _ := cmd.Flags().GetBool("omit-unknown-albums")
	wait, _ := cmd.Flags().GetDuration("wait")

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	return browse(ctx, api, hub.NavigateRequest{
		Action:            hub.NavigateList,
		Link:              args[0],
		Search:            search,
		OmitUnknownAlbums: omit,
	}, 100*time.Millisecond, cmd.OutOrStdout())
}

// browse requests a navigation list and prints the first list that
// differs from the one the player held before the request.
func browse(ctx context.Context, api *apiClient, req hub.NavigateRequest, interval time.Duration, w io.Writer) error {
	before, err := api.state(ctx)
	if err != nil {
		return fmt.Errorf("failed to get player state: %w", err)
	}
	prev := before.Player["navigationList"]

	if err := api.navigate(ctx, req); err != nil {
		return fmt.Errorf("failed to request %s: %w", req.Link, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("player did not answer for %s", req.Link)
			}
			return ctx.Err()
		case <-ticker.C:
		}

		st, err := api.state(ctx)
		if err != nil {
			return fmt.Errorf("failed to get player state: %w", err)
		}
		list := st.Player["navigationList"]
		if list == nil || reflect.DeepEqual(list, prev) {
			continue
		}
		out, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode list: %w", err)
		}
		fmt.Fprintln(w, string(out))
		return nil
	}
}

func runResume(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	var song hub.LastSong
	song.AlbumLink, _ = flags.GetString("album-link")
	song.Artist, _ = flags.GetString("artist")
	song.Title, _ = flags.GetString("title")
	song.Duration, _ = flags.GetString("duration")
	song.Position, _ = flags.GetFloat64("position")
	if song.Position < 0 || song.Position > 1 {
		return fmt.Errorf("invalid position: %g (must be between 0 and 1)", song.Position)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	if err := api.resume(ctx, song); err != nil {
		return fmt.Errorf("failed to resume %s: %w", song.Title, err)
	}
	return nil
}
