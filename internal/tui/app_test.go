package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/playerhub/internal/hub"
)

func snapshot(title string, position float64, scrobbled bool) *hub.StateResponse {
	return &hub.StateResponse{
		Connection: "connected",
		User:       "alice",
		Player:     map[string]any{"playing": true, "volume": float64(40), "shuffle": "", "repeat": ""},
		Song: map[string]any{
			"info": map[string]any{
				"title":    title,
				"artist":   "Radiohead",
				"album":    "In Rainbows",
				"duration": float64(290),
			},
			"positionSec":  position,
			"scrobbleTime": float64(145),
			"scrobbled":    scrobbled,
			"rating":       float64(0),
			"loved":        nil,
		},
	}
}

func TestViewFrom(t *testing.T) {
	v := ViewFrom(snapshot("Reckoner", 30, false))
	if v.Title != "Reckoner" || v.Artist != "Radiohead" || v.Duration != 290 {
		t.Errorf("ViewFrom() = %+v", v)
	}
	if v.Volume == nil || *v.Volume != 40 {
		t.Errorf("Volume = %v, want 40", v.Volume)
	}
	if v.Loved != nil {
		t.Errorf("Loved = %v, want nil", *v.Loved)
	}

	empty := ViewFrom(nil)
	if empty.HasSong() || empty.Connection != "disconnected" {
		t.Errorf("ViewFrom(nil) = %+v", empty)
	}
}

func TestObserve_RecentAndScrobbleCount(t *testing.T) {
	a := &App{}
	now := time.Now()

	a.observe(ViewFrom(snapshot("Reckoner", 10, false)), now)
	a.observe(ViewFrom(snapshot("Reckoner", 150, true)), now)
	a.observe(ViewFrom(snapshot("Reckoner", 160, true)), now)
	a.observe(ViewFrom(snapshot("Nude", 0, false)), now)

	if a.scrobbles != 1 {
		t.Errorf("scrobbles = %d, want 1", a.scrobbles)
	}
	recent := a.recentSongs()
	if len(recent) != 1 || recent[0].Title != "Reckoner" || !recent[0].Scrobbled {
		t.Errorf("recentSongs() = %+v", recent)
	}
}

func TestRecentSongs_RingBuffer(t *testing.T) {
	a := &App{}
	for i := 0; i < maxRecentSongs+2; i++ {
		a.addRecent(&View{Title: string(rune('A' + i))}, time.Now())
	}
	recent := a.recentSongs()
	if len(recent) != maxRecentSongs {
		t.Fatalf("len = %d, want %d", len(recent), maxRecentSongs)
	}
	if recent[0].Title != "G" || recent[maxRecentSongs-1].Title != "C" {
		t.Errorf("order = %v", recent)
	}
}

func TestKeyCommand(t *testing.T) {
	vol := float64(98)
	current := &View{Volume: &vol}

	tests := []struct {
		key         rune
		wantCommand string
		wantOptions any
		wantOK      bool
	}{
		{' ', "playPause", nil, true},
		{'n', "nextSong", nil, true},
		{'P', "prevSong", nil, true},
		{'s', "toggleShuffle", nil, true},
		{'r', "toggleRepeat", nil, true},
		{'4', "rate", 4, true},
		{'+', "setVolume", 100, true},
		{'-', "setVolume", 93, true},
		{'x', "", nil, false},
	}
	for _, tt := range tests {
		command, options, ok := keyCommand(tt.key, current)
		if ok != tt.wantOK || command != tt.wantCommand || options != tt.wantOptions {
			t.Errorf("keyCommand(%q) = %q, %v, %v; want %q, %v, %v",
				tt.key, command, options, ok, tt.wantCommand, tt.wantOptions, tt.wantOK)
		}
	}

	if _, _, ok := keyCommand('+', &View{}); ok {
		t.Error("volume key handled without a known volume")
	}
}

func TestRenderNowPlaying(t *testing.T) {
	if got := renderNowPlaying(nil, nil); !strings.Contains(got, "No player connected") {
		t.Errorf("renderNowPlaying(nil) = %q", got)
	}
	if got := renderNowPlaying(nil, errors.New("daemon is not running")); !strings.Contains(got, "daemon is not running") {
		t.Errorf("renderNowPlaying(err) = %q", got)
	}

	v := ViewFrom(snapshot("Reckoner", 30, false))
	loved := true
	v.Loved = &loved
	v.Rating = 5
	got := renderNowPlaying(v, nil)
	for _, want := range []string{"Reckoner", "Radiohead", "▶", "★★★★★", "♥"} {
		if !strings.Contains(got, want) {
			t.Errorf("renderNowPlaying() missing %q:\n%s", want, got)
		}
	}
}

func TestRenderScrobble(t *testing.T) {
	v := ViewFrom(snapshot("Reckoner", 72.5, false))
	if got := renderScrobble(v, 0, time.Minute); !strings.Contains(got, "50%") {
		t.Errorf("renderScrobble() = %q, want 50%%", got)
	}

	v.ScrobbleTime = -1
	if got := renderScrobble(v, 0, time.Minute); !strings.Contains(got, "Not scrobbling") {
		t.Errorf("renderScrobble(never) = %q", got)
	}

	v.User = ""
	if got := renderScrobble(v, 0, time.Minute); !strings.Contains(got, "Not logged in") {
		t.Errorf("renderScrobble(no user) = %q", got)
	}
}

func TestBuildProgressBar(t *testing.T) {
	if got := buildProgressBar(0, 0, 4); got != "----" {
		t.Errorf("buildProgressBar(no duration) = %q", got)
	}
	got := buildProgressBar(50, 100, 10)
	if strings.Count(got, "█") != 5 || strings.Count(got, "░") != 5 {
		t.Errorf("buildProgressBar(50%%) = %q", got)
	}
	if got := buildProgressBar(200, 100, 4); strings.Count(got, "█") != 4 {
		t.Errorf("buildProgressBar(overflow) = %q", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{
		0:    "00:00",
		-3:   "00:00",
		61.9: "01:01",
		3725: "1:02:05",
	}
	for in, want := range tests {
		if got := formatSeconds(in); got != want {
			t.Errorf("formatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}
