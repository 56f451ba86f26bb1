package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/playerhub/internal/hub"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the song playing in the connected player",
	Long: `Ask the daemon for the current song and print it.

The output format can be customized in ~/.config/playerhub/config.yaml
using a Go template. Available fields: .Title, .Artist, .Album,
.AlbumArtist, .Duration, .Position, .Rating, .Loved, .Scrobbled, .User

Exit codes:
  0 - A song is playing
  1 - No song playing, paused, no player connected or daemon not running`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled)")
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text")
	nowCmd.Flags().Int("speed", 1, "Marquee speed in characters per second")
	nowCmd.Flags().String("separator", " • ", "Text between marquee repetitions")
}

// NowPlaying is the data passed to the output template.
type NowPlaying struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Duration    string
	Position    string
	Rating      float64
	Loved       bool
	Scrobbled   bool
	User        string
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, cfg, err := clientFromConfig()
	if err != nil {
		return err
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	st, err := api.state(ctx)
	if err != nil {
		return fmt.Errorf("failed to get player state: %w", err)
	}

	np, ok := nowPlayingFrom(st)
	if !ok {
		os.Exit(1)
		return nil
	}

	output, err := formatNowPlaying(np, cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width > 0 {
		if marquee, _ := cmd.Flags().GetBool("marquee"); marquee {
			speed, _ := cmd.Flags().GetInt("speed")
			separator, _ := cmd.Flags().GetString("separator")
			output = marqueeText(output, width, speed, separator, time.Now())
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// nowPlayingFrom extracts the template data. It reports false when no
// song is playing.
func nowPlayingFrom(st *hub.StateResponse) (*NowPlaying, bool) {
	if st == nil || st.Connection == "disconnected" {
		return nil, false
	}
	info, _ := st.Song["info"].(map[string]any)
	if info == nil {
		return nil, false
	}
	if playing, _ := st.Player["playing"].(bool); !playing {
		return nil, false
	}

	str := func(m map[string]any, key string) string {
		s, _ := m[key].(string)
		return s
	}
	num := func(m map[string]any, key string) float64 {
		f, _ := m[key].(float64)
		return f
	}
	flag := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}

	return &NowPlaying{
		Title:       str(info, "title"),
		Artist:      str(info, "artist"),
		Album:       str(info, "album"),
		AlbumArtist: str(info, "albumArtist"),
		Duration:    formatSeconds(num(info, "duration")),
		Position:    str(st.Song, "position"),
		Rating:      num(st.Song, "rating"),
		Loved:       flag(st.Song, "loved"),
		Scrobbled:   flag(st.Song, "scrobbled"),
		User:        st.User,
	}, true
}

// formatSeconds renders a duration as m:ss, or h:mm:ss past an hour.
func formatSeconds(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatNowPlaying applies the template to the song data
func formatNowPlaying(np *NowPlaying, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, np); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// Wide runes can leave the truncation one column short
		resultWidth := runewidth.StringWidth(result)
		if resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		}
		return result
	} else if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	return text
}

// marqueeText scrolls text that exceeds width through a window of
// exactly width display columns. The scroll position is derived from
// now, so successive status line refreshes advance the text by speed
// characters per second. Text that fits is padded instead.
func marqueeText(text string, width int, speed int, separator string, now time.Time) string {
	if width <= 0 {
		return text
	}

	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	// "original{separator}original" loops without a visible seam
	extendedRunes := []rune(text + separator + text)
	totalChars := len(extendedRunes)
	position := int(now.Unix()*int64(speed)) % totalChars
	if position < 0 {
		position += totalChars
	}

	var result []rune
	resultWidth := 0

	for i := 0; i < totalChars && resultWidth < width; i++ {
		r := extendedRunes[(position+i)%totalChars]
		rw := runewidth.RuneWidth(r)

		if resultWidth+rw > width {
			break
		}
		result = append(result, r)
		resultWidth += rw
	}

	if resultWidth < width {
		return string(result) + strings.Repeat(" ", width-resultWidth)
	}

	return string(result)
}
