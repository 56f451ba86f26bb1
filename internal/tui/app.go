package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jfmyers9/playerhub/internal/hub"
)

const maxRecentSongs = 5

// Client is the part of the daemon's control API the TUI uses.
type Client interface {
	State(ctx context.Context) (*hub.StateResponse, error)
	Execute(ctx context.Context, command string, options any) error
}

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often the daemon is polled
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 500 * time.Millisecond,
	}
}

// RecentSong stores info about a recently played song
type RecentSong struct {
	Title     string
	Artist    string
	Scrobbled bool
	PlayedAt  time.Time
}

// View is the part of a state snapshot the TUI renders.
type View struct {
	Connection   string
	User         string
	Playing      bool
	Title        string
	Artist       string
	Album        string
	Duration     float64
	Position     float64
	ScrobbleTime float64
	Scrobbled    bool
	Loved        *bool
	Rating       float64
	Shuffle      string
	Repeat       string
	Volume       *float64
}

// HasSong reports whether a song is loaded in the player.
func (v *View) HasSong() bool {
	return v != nil && v.Title != ""
}

func (v *View) key() string {
	if !v.HasSong() {
		return ""
	}
	return v.Artist + "\x00" + v.Title
}

// ViewFrom flattens a state snapshot.
func ViewFrom(st *hub.StateResponse) *View {
	v := &View{}
	if st == nil {
		v.Connection = "disconnected"
		return v
	}
	v.Connection = st.Connection
	v.User = st.User
	v.Playing, _ = st.Player["playing"].(bool)
	v.Shuffle, _ = st.Player["shuffle"].(string)
	v.Repeat, _ = st.Player["repeat"].(string)
	if vol, ok := st.Player["volume"].(float64); ok {
		v.Volume = &vol
	}

	if info, ok := st.Song["info"].(map[string]any); ok {
		v.Title, _ = info["title"].(string)
		v.Artist, _ = info["artist"].(string)
		v.Album, _ = info["album"].(string)
		v.Duration, _ = info["duration"].(float64)
	}
	v.Position, _ = st.Song["positionSec"].(float64)
	v.ScrobbleTime, _ = st.Song["scrobbleTime"].(float64)
	v.Scrobbled, _ = st.Song["scrobbled"].(bool)
	v.Rating, _ = st.Song["rating"].(float64)
	if loved, ok := st.Song["loved"].(bool); ok {
		v.Loved = &loved
	}
	return v
}

// App is the TUI application for the connected player
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	status     *tview.TextView
	scrobble   *tview.TextView
	recent     *tview.TextView

	config Config
	client Client

	// mu guards everything below; the poller writes, the draw callback
	// reads.
	mu sync.Mutex

	current *View
	err     error

	sessionStart time.Time
	scrobbles    int

	// Ring buffer for recent songs
	recentBuf   [maxRecentSongs]RecentSong
	recentCount int // total songs added (recentCount % maxRecentSongs = next write index)

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastScrobble   string
	lastRecent     string

	// Cached progress bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int
}

// New creates a new TUI application with the given config
func New(client Client, cfg Config) *App {
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = DefaultConfig().RefreshRate
	}
	a := &App{
		app:          tview.NewApplication(),
		config:       cfg,
		client:       client,
		sessionStart: time.Now(),
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	// Now playing panel
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	// Progress bar
	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	// Scrobble status
	a.scrobble = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.scrobble.SetBorder(true).
		SetTitle(" Scrobble ").
		SetTitleAlign(tview.AlignLeft)

	// Recent songs
	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Recent ").
		SetTitleAlign(tview.AlignLeft)

	// Status bar
	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  n:next  p:prev  s:shuffle  r:repeat  0-5:rate  +/-:volume[-]")

	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.scrobble, 0, 1, false).
		AddItem(a.recent, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 3, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(bottomRow, 7, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

// keyCommand maps a key to a player command. ok is false for keys the
// TUI does not handle.
func keyCommand(r rune, current *View) (command string, options any, ok bool) {
	switch r {
	case ' ':
		return "playPause", nil, true
	case 'n', 'N':
		return "nextSong", nil, true
	case 'p', 'P':
		return "prevSong", nil, true
	case 's', 'S':
		return "toggleShuffle", nil, true
	case 'r', 'R':
		return "toggleRepeat", nil, true
	case '0', '1', '2', '3', '4', '5':
		return "rate", int(r - '0'), true
	case '+', '=', '-':
		if current == nil || current.Volume == nil {
			return "", nil, false
		}
		step := 5.0
		if r == '-' {
			step = -5
		}
		vol := min(max(*current.Volume+step, 0), 100)
		return "setVolume", int(vol), true
	}
	return "", nil, false
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	if event.Rune() == 'q' || event.Rune() == 'Q' {
		a.app.Stop()
		return nil
	}

	a.mu.Lock()
	current := a.current
	a.mu.Unlock()

	command, options, ok := keyCommand(event.Rune(), current)
	if !ok {
		return event
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.client.Execute(ctx, command, options); err != nil {
			a.mu.Lock()
			a.err = err
			a.mu.Unlock()
		}
	}()
	return nil
}

// Run polls the daemon and draws until ctx is cancelled or the user
// quits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.poll(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// poll is the only source of redraws.
func (a *App) poll(ctx context.Context) {
	ticker := time.NewTicker(a.config.RefreshRate)
	defer ticker.Stop()

	for {
		reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		st, err := a.client.State(reqCtx)
		cancel()

		a.mu.Lock()
		if err != nil {
			a.err = err
		} else {
			a.err = nil
			a.observe(ViewFrom(st), time.Now())
		}
		a.mu.Unlock()
		a.refresh()

		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
		}
	}
}

// observe records a new snapshot, moving the previous song to the recent
// list when the song changes. Must be called with a.mu held.
func (a *App) observe(v *View, now time.Time) {
	prev := a.current
	if prev.HasSong() && prev.key() != v.key() {
		a.addRecent(prev, now)
	}
	if v.Scrobbled && (prev == nil || !prev.Scrobbled || prev.key() != v.key()) {
		a.scrobbles++
	}
	a.current = v
}

// addRecent adds a song to the ring buffer. Must be called with a.mu held.
func (a *App) addRecent(v *View, now time.Time) {
	idx := a.recentCount % maxRecentSongs
	a.recentBuf[idx] = RecentSong{
		Title:     v.Title,
		Artist:    v.Artist,
		Scrobbled: v.Scrobbled,
		PlayedAt:  now,
	}
	a.recentCount++
}

// recentSongs returns recent songs in most-recent-first order.
// Must be called with a.mu held.
func (a *App) recentSongs() []RecentSong {
	n := min(a.recentCount, maxRecentSongs)
	result := make([]RecentSong, n)
	for i := 0; i < n; i++ {
		idx := (a.recentCount - 1 - i) % maxRecentSongs
		result[i] = a.recentBuf[idx]
	}
	return result
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.setText(a.nowPlaying, &a.lastNowPlaying, renderNowPlaying(a.current, a.err))
		a.setText(a.progress, &a.lastProgress, a.renderProgress())
		a.setText(a.scrobble, &a.lastScrobble, renderScrobble(a.current, a.scrobbles, time.Since(a.sessionStart)))
		a.setText(a.recent, &a.lastRecent, renderRecent(a.recentSongs()))
	})
}

func (a *App) setText(view *tview.TextView, last *string, text string) {
	if text != *last {
		*last = text
		view.SetText(text)
	}
}

func (a *App) renderProgress() string {
	v := a.current
	if !v.HasSong() {
		return ""
	}
	_, _, width, _ := a.progress.GetInnerRect()
	barWidth := width - 14 // Account for time display
	// Only update cached width when GetInnerRect returns a positive value,
	// avoiding flicker from transient zero-width during layout.
	if barWidth > 0 {
		a.lastBarWidth = barWidth
	}
	if a.lastBarWidth < 10 {
		a.lastBarWidth = 10
	}
	return fmt.Sprintf("%s %s %s",
		formatSeconds(v.Position),
		buildProgressBar(v.Position, v.Duration, a.lastBarWidth),
		formatSeconds(v.Duration))
}

func renderNowPlaying(v *View, err error) string {
	switch {
	case err != nil:
		return "\n\n[red]" + tview.Escape(err.Error()) + "[-]"
	case v == nil || v.Connection == "disconnected":
		return "\n\n[gray]No player connected[-]"
	case !v.HasSong():
		return "\n\n[gray]No song playing[-]"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(v.Title)))
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(v.Artist)))
	sb.WriteString(fmt.Sprintf("[gray]%s[-]", tview.Escape(v.Album)))

	stateIcon := "[yellow]⏸[-]" // Pause icon
	if v.Playing {
		stateIcon = "[green]▶[-]" // Play triangle
	}
	sb.WriteString("\n\n" + stateIcon)
	if v.Rating > 0 {
		sb.WriteString("  [yellow]" + strings.Repeat("★", int(v.Rating)) + "[-]")
	}
	if v.Loved != nil && *v.Loved {
		sb.WriteString("  [red]♥[-]")
	}
	if v.Shuffle != "" || v.Repeat != "" {
		sb.WriteString(fmt.Sprintf("\n[gray]%s %s[-]", tview.Escape(v.Shuffle), tview.Escape(v.Repeat)))
	}
	return sb.String()
}

func renderScrobble(v *View, scrobbles int, session time.Duration) string {
	var sb strings.Builder

	switch {
	case v == nil || v.User == "":
		sb.WriteString("[gray]Not logged in[-]\n")
	case !v.HasSong():
		sb.WriteString("[gray]No song[-]\n")
	case v.Scrobbled:
		sb.WriteString("[green]✓ Scrobbled[-]\n")
	case v.ScrobbleTime < 0:
		sb.WriteString("[gray]Not scrobbling[-]\n")
	default:
		progress := 100.0
		if v.ScrobbleTime > 0 {
			progress = min(v.Position/v.ScrobbleTime*100, 100)
		}
		barWidth := 10
		filled := int(progress / 100 * float64(barWidth))
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		sb.WriteString(fmt.Sprintf("[yellow]%s %.0f%%[-]\n", bar, progress))
	}

	sb.WriteString("\n")
	if v != nil && v.User != "" {
		sb.WriteString(fmt.Sprintf("User: %s\n", tview.Escape(v.User)))
	}
	sb.WriteString(fmt.Sprintf("Scrobbled: %d\n", scrobbles))
	sb.WriteString(fmt.Sprintf("Session: %s", formatSeconds(session.Seconds())))
	return sb.String()
}

func renderRecent(songs []RecentSong) string {
	if len(songs) == 0 {
		return "[gray]No recent songs[-]"
	}
	var sb strings.Builder
	for i, song := range songs {
		if i > 0 {
			sb.WriteString("\n")
		}
		if song.Scrobbled {
			sb.WriteString("[green]✓[-] ")
		} else {
			sb.WriteString("[red]✗[-] ")
		}
		title := []rune(song.Title)
		if len(title) > 20 {
			title = append(title[:17], []rune("...")...)
		}
		sb.WriteString(fmt.Sprintf("[white]%s[-]", tview.Escape(string(title))))
	}
	return sb.String()
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration float64, width int) string {
	if duration <= 0 || width <= 0 {
		return strings.Repeat("-", max(width, 0))
	}

	progress := min(max(position/duration, 0), 1)
	filled := int(progress * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

// formatSeconds formats seconds as MM:SS or H:MM:SS for longer durations
func formatSeconds(secs float64) string {
	if secs < 0 {
		secs = 0
	}
	total := int(secs)
	hours := total / 3600
	minutes := (total / 60) % 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
