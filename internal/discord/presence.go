// Package discord mirrors the playing song into Discord Rich Presence.
package discord

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/playerhub/internal/bean"
	"github.com/jfmyers9/playerhub/internal/state"
)

// Source tags the listeners registered by the presence.
const Source = "discord"

// DefaultPlayerName is the activity name shown as "Listening to ...".
const DefaultPlayerName = "Music"

type rpcClient interface {
	SetActivity(Activity) error
	Close() error
}

// Config configures the presence. AppID is the Discord application.
type Config struct {
	AppID      string
	PlayerName string
	Logger     zerolog.Logger
}

// Track is the part of the song and player stores shown in Discord.
type Track struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // seconds
	Position float64 // seconds
	Playing  bool
}

type lastActivity struct {
	title, artist, album string
	playing              bool
}

// Presence sets the Discord activity from the stores. Listeners only
// queue the latest Track; Run does the IPC.
type Presence struct {
	cfg     Config
	logger  zerolog.Logger
	state   *state.State
	updates chan *Track

	// Owned by the Run goroutine.
	client  rpcClient
	connect func(appID string) (rpcClient, error)
	last    lastActivity
	artwork *artworkLookup
	now     func() time.Time
}

// New returns a presence for the stores of st.
func New(cfg Config, st *state.State) *Presence {
	if cfg.PlayerName == "" {
		cfg.PlayerName = DefaultPlayerName
	}
	return &Presence{
		cfg:     cfg,
		logger:  cfg.Logger.With().Str("component", "discord").Logger(),
		state:   st,
		updates: make(chan *Track, 1),
		connect: dialIPC,
		artwork: newArtworkLookup(),
		now:     time.Now,
	}
}

// Bind queues an update whenever the song or the play state changes.
func (p *Presence) Bind() error {
	l := bean.On(p.publish)
	err := errors.Join(
		p.state.Song.AddListener("info", l, Source),
		p.state.Player.AddListener("playing", l, Source),
	)
	if err != nil {
		p.Unbind()
		return err
	}
	p.publish()
	return nil
}

// Unbind removes the listeners.
func (p *Presence) Unbind() {
	p.state.Song.RemoveAllForSource(Source)
	p.state.Player.RemoveAllForSource(Source)
}

// current reads the stores.
func (p *Presence) current() *Track {
	info := p.state.Song.Map("info")
	if info == nil {
		return nil
	}
	t := &Track{
		Playing:  p.state.Player.Bool("playing"),
		Position: p.state.Song.Float("positionSec"),
	}
	t.Title, _ = info["title"].(string)
	t.Artist, _ = info["artist"].(string)
	t.Album, _ = info["album"].(string)
	t.Duration, _ = info["duration"].(float64)
	return t
}

// publish replaces any queued update with the current one.
func (p *Presence) publish() {
	t := p.current()
	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- t:
	default:
	}
}

// Run applies queued updates until ctx is done. If Discord isn't
// running, it logs and retries on the next update.
func (p *Presence) Run(ctx context.Context) error {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-p.updates:
			p.handleTrack(ctx, t)
		}
	}
}

func (p *Presence) handleTrack(ctx context.Context, t *Track) {
	if t == nil || !t.Playing || t.Title == "" {
		if p.last.playing {
			p.clearActivity()
			p.last = lastActivity{}
		}
		return
	}

	cur := lastActivity{title: t.Title, artist: t.Artist, album: t.Album, playing: true}
	if cur == p.last {
		return
	}

	if err := p.ensureConnected(); err != nil {
		p.logger.Warn().Err(err).Msg("Discord not available")
		return
	}

	activity := Activity{
		Type:    ActivityListening,
		Name:    p.cfg.PlayerName,
		Details: t.Title,
		State:   "by " + t.Artist,
		Assets: &Assets{
			LargeText:  t.Album,
			SmallImage: "playerhub",
			SmallText:  "playerhub",
		},
	}
	if t.Duration > 0 {
		start := p.now().Add(-time.Duration(t.Position * float64(time.Second)))
		end := start.Add(time.Duration(t.Duration * float64(time.Second)))
		startUnix, endUnix := start.Unix(), end.Unix()
		activity.Timestamps = &Timestamps{Start: &startUnix, End: &endUnix}
	}
	if p.artwork != nil {
		activity.Assets.LargeImage = p.artwork.Lookup(ctx, t.Artist, t.Album, t.Title)
	}

	if err := p.client.SetActivity(activity); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to set activity")
		p.close()
		return
	}
	p.logger.Debug().Str("title", t.Title).Msg("Presence updated")
	p.last = cur
}

func (p *Presence) ensureConnected() error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(p.cfg.AppID)
	if err != nil {
		return err
	}
	p.logger.Info().Msg("Connected to Discord")
	p.client = client
	return nil
}

func (p *Presence) clearActivity() {
	if p.client == nil {
		return
	}
	if err := p.client.SetActivity(Activity{}); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to clear activity")
		p.close()
	}
}

func (p *Presence) close() {
	if p.client == nil {
		return
	}
	_ = p.client.Close()
	p.client = nil
}
