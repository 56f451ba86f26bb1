package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Commands understood by the player page.
const (
	commandPlay          = "play"
	commandPause         = "pause"
	commandPlayPause     = "playPause"
	commandNext          = "nextSong"
	commandPrev          = "prevSong"
	commandToggleShuffle = "toggleShuffle"
	commandSetShuffle    = "setShuffle"
	commandToggleRepeat  = "toggleRepeat"
	commandSetRepeat     = "setRepeat"
	commandRate          = "rate"
	commandSetVolume     = "setVolume"
)

// repeatModes maps CLI arguments to the player's repeat modes.
var repeatModes = map[string]string{
	"off":  "NO_REPEAT",
	"all":  "LIST_REPEAT",
	"one":  "SINGLE_REPEAT",
	"list": "LIST_REPEAT",
	"song": "SINGLE_REPEAT",
}

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume playback in the connected player",
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(commandPlay),
}

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback in the connected player",
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(commandPause),
}

// playpauseCmd represents the playpause command
var playpauseCmd = &cobra.Command{
	Use:   "playpause",
	Short: "Toggle play/pause in the connected player",
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(commandPlayPause),
}

// nextCmd represents the next command
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next song",
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(commandNext),
}

// prevCmd represents the prev command
var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go to the previous song",
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(commandPrev),
}

// shuffleCmd represents the shuffle command
var shuffleCmd = &cobra.Command{
	Use:   "shuffle [on|off]",
	Short: "Toggle or set shuffle mode",
	Long: `Control shuffle mode in the connected player.

Without arguments, toggles shuffle on/off.
With 'on' or 'off' argument, explicitly sets shuffle state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: parsedCommand(shuffleCommand),
}

// repeatCmd represents the repeat command
var repeatCmd = &cobra.Command{
	Use:   "repeat [off|all|one]",
	Short: "Toggle or set repeat mode",
	Long: `Control repeat mode in the connected player.

Without arguments, cycles through the repeat modes.
With 'off', 'all' or 'one', explicitly sets the mode.`,
	Args: cobra.MaximumNArgs(1),
	RunE: parsedCommand(repeatCommand),
}

// rateCmd represents the rate command
var rateCmd = &cobra.Command{
	Use:   "rate <0-5>",
	Short: "Rate the current song",
	Long: `Rate the current song from 0 (no rating) to 5 stars. In thumbs mode
1 is thumbs down and 5 is thumbs up.

With linkRatings enabled, 5 stars also loves the song on Last.fm.`,
	Args: cobra.ExactArgs(1),
	RunE: parsedCommand(rateCommand),
}

// volumeCmd represents the volume command
var volumeCmd = &cobra.Command{
	Use:   "volume [0-100]",
	Short: "Show or set the playback volume",
	Long: `Set the playback volume of the connected player.

Volume level must be between 0 (muted) and 100 (maximum).
Without arguments, displays the current volume.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(playpauseCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
	rootCmd.AddCommand(shuffleCmd)
	rootCmd.AddCommand(repeatCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(volumeCmd)
}

// sendCommand forwards a player command through the daemon.
func sendCommand(command string, options any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	if err := api.execute(ctx, command, options); err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}
	return nil
}

func simpleCommand(command string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return sendCommand(command, nil)
	}
}

func parsedCommand(parse func(args []string) (string, any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		command, options, err := parse(args)
		if err != nil {
			return err
		}
		return sendCommand(command, options)
	}
}

func shuffleCommand(args []string) (string, any, error) {
	if len(args) == 0 {
		return commandToggleShuffle, nil, nil
	}
	switch args[0] {
	case "on":
		return commandSetShuffle, true, nil
	case "off":
		return commandSetShuffle, false, nil
	default:
		return "", nil, fmt.Errorf("invalid shuffle argument: %s (must be 'on' or 'off')", args[0])
	}
}

func repeatCommand(args []string) (string, any, error) {
	if len(args) == 0 {
		return commandToggleRepeat, nil, nil
	}
	mode, ok := repeatModes[strings.ToLower(args[0])]
	if !ok {
		return "", nil, fmt.Errorf("invalid repeat mode: %s (must be 'off', 'all' or 'one')", args[0])
	}
	return commandSetRepeat, mode, nil
}

func rateCommand(args []string) (string, any, error) {
	rating, err := strconv.Atoi(args[0])
	if err != nil || rating < 0 || rating > 5 {
		return "", nil, fmt.Errorf("invalid rating: %s (must be a number 0-5)", args[0])
	}
	return commandRate, rating, nil
}

func volumeCommand(args []string) (string, any, error) {
	level, err := strconv.Atoi(args[0])
	if err != nil || level < 0 || level > 100 {
		return "", nil, fmt.Errorf("invalid volume level: %s (must be a number 0-100)", args[0])
	}
	return commandSetVolume, level, nil
}

func runVolume(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		command, options, err := volumeCommand(args)
		if err != nil {
			return err
		}
		return sendCommand(command, options)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	st, err := api.state(ctx)
	if err != nil {
		return fmt.Errorf("failed to get player state: %w", err)
	}
	volume, ok := st.Player["volume"].(float64)
	if !ok {
		return fmt.Errorf("volume unknown (no player connected?)")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%.0f\n", volume)
	return nil
}
