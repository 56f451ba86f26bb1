// Package rules wires property changes to derived state and side
// effects: the scrobble threshold, scrobbling and now-playing calls,
// love/unlove, and UI messages to the player page.
package rules

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/playerhub/internal/bean"
	"github.com/jfmyers9/playerhub/internal/hub"
	"github.com/jfmyers9/playerhub/internal/schedule"
	"github.com/jfmyers9/playerhub/internal/scrobbler"
	"github.com/jfmyers9/playerhub/internal/state"
)

// Source tags every listener registered by the rules.
const Source = "rules"

// DefaultCacheRetryDelay is the pause before retrying cached scrobbles
// after a retriable failure.
const DefaultCacheRetryDelay = 5 * time.Minute

// Remote is the scrobbling service.
type Remote interface {
	SetSessionKey(key string)
	NowPlaying(ctx context.Context, s scrobbler.Scrobble) error
	Scrobble(ctx context.Context, s scrobbler.Scrobble) error
	ScrobbleBatch(ctx context.Context, scrobbles []scrobbler.Scrobble) error
	Love(ctx context.Context, artist, track string) error
	Unlove(ctx context.Context, artist, track string) error
}

// RetryCache stores scrobbles that failed with a retriable error.
type RetryCache interface {
	Add(ctx context.Context, user string, s scrobbler.Scrobble) error
	Pending(ctx context.Context, user string) ([]scrobbler.CachedScrobble, error)
	Remove(ctx context.Context, ids []int64) error
	Drop(ctx context.Context, user string) error
	Clear(ctx context.Context) error
}

// Messenger delivers messages to the player page and dispatches domain
// messages from it.
type Messenger interface {
	Send(msg hub.Outbound) error
	Handle(msgType string, fn hub.HandlerFunc)
}

// Config holds the collaborators of the rules. Lyrics and Clock are
// optional.
type Config struct {
	State  *state.State
	Hub    Messenger
	Remote Remote
	Cache  RetryCache
	Lyrics LyricsProvider
	Clock  schedule.Clock
	Logger zerolog.Logger

	CacheRetryDelay time.Duration
}

// Rules is the set of reactive bindings.
type Rules struct {
	state  *state.State
	hub    Messenger
	remote Remote
	cache  RetryCache
	lyrics LyricsProvider
	clock  schedule.Clock
	logger zerolog.Logger

	retryDelay time.Duration
	retry      *schedule.Task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	bound bool
}

// New creates unbound rules.
func New(cfg Config) *Rules {
	r := &Rules{
		state:      cfg.State,
		hub:        cfg.Hub,
		remote:     cfg.Remote,
		cache:      cfg.Cache,
		lyrics:     cfg.Lyrics,
		clock:      cfg.Clock,
		logger:     cfg.Logger.With().Str("component", "rules").Logger(),
		retryDelay: cfg.CacheRetryDelay,
	}
	if r.clock == nil {
		r.clock = schedule.Real()
	}
	if r.retryDelay <= 0 {
		r.retryDelay = DefaultCacheRetryDelay
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.retry = schedule.NewTask(r.clock, func() {
		user := r.user()
		if user == "" {
			return
		}
		r.async(func(ctx context.Context) { r.flushCache(ctx, user) })
	})
	return r
}

// Bind registers every listener and message handler.
func (r *Rules) Bind() error {
	r.mu.Lock()
	if r.bound {
		r.mu.Unlock()
		return nil
	}
	r.bound = true
	r.mu.Unlock()

	st := r.state
	recompute := bean.On(r.recompute)

	err := errors.Join(
		st.Song.SetEquals("info", sameSong),
		st.LocalSettings.Watch("lastfmSessionKey", bean.NewListener(r.onSessionKey), Source),
		st.LocalSettings.AddListener("lastfmSessionName", bean.NewListener(r.onUserChange), Source),
		st.Song.AddListener("info", bean.NewListener(r.onSongChange), Source),
		st.Song.AddListener("ff", recompute, Source),
		st.Settings.AddListener("scrobble scrobblePercent scrobbleTime scrobbleMaxDuration disableScrobbleOnFf", recompute, Source),
		st.Player.AddListener("connected", bean.NewListener(r.onConnected), Source),
		st.Song.Watch("position", bean.NewListener(r.onPosition), Source),
		st.Song.AddListener("positionSec", bean.NewListener(r.onPositionSec), Source),
		st.Settings.AddListener("connectedIndicator", bean.On(r.sendConnectedIndicator), Source),
		st.Settings.AddListener("lyrics lyricsFontSize lyricsWidth lyricsAutoReload", bean.On(r.sendLyricsState), Source),
	)
	if err != nil {
		r.Unbind()
		return err
	}

	r.hub.Handle(hub.TypeRated, r.handleRated)
	r.hub.Handle(hub.TypeLoadLyrics, r.handleLoadLyrics)

	r.recompute()
	r.logger.Debug().Msg("Rules bound")
	return nil
}

// Unbind removes every listener and handler and cancels the cache retry
// timer. In-flight remote calls keep running; see Close.
func (r *Rules) Unbind() {
	r.mu.Lock()
	r.bound = false
	r.mu.Unlock()

	for _, store := range r.state.Stores() {
		store.RemoveAllForSource(Source)
	}
	_ = r.state.Song.SetEquals("info", nil)
	r.hub.Handle(hub.TypeRated, nil)
	r.hub.Handle(hub.TypeLoadLyrics, nil)
	r.retry.Cancel()
}

// Wait blocks until in-flight remote calls finish.
func (r *Rules) Wait() {
	r.wg.Wait()
}

// Close unbinds and waits for in-flight remote calls. When ctx expires
// first the calls are cancelled; cancelled scrobbles still reach the
// retry cache.
func (r *Rules) Close(ctx context.Context) {
	r.Unbind()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn().Msg("Cancelling in-flight remote calls")
		r.cancel()
		<-done
	}
	r.cancel()
}

// async runs fn on its own goroutine, tracked by Wait. Once unbound it
// does nothing, so Close never races a late Add. Store writes from fn go
// through State.Do.
func (r *Rules) async(fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.bound {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(r.ctx)
	}()
}

func (r *Rules) user() string {
	return r.state.LocalSettings.String("lastfmSessionName")
}

func (r *Rules) scrobblingEnabled() bool {
	return r.state.Settings.Bool("scrobble") && r.user() != ""
}

func (r *Rules) onSessionKey(value, _ any, _ string) {
	key, _ := value.(string)
	r.remote.SetSessionKey(key)
}

// onUserChange drops the retry cache: it belongs to the previous user.
func (r *Rules) onUserChange(value, old any, _ string) {
	r.retry.Cancel()
	if prev, _ := old.(string); prev != "" {
		r.async(func(ctx context.Context) {
			if err := r.cache.Clear(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Failed to clear scrobble cache")
			}
		})
	}
	r.logger.Info().Interface("user", value).Msg("Last.fm user changed")
	r.recompute()
}

// onConnected refreshes the page state after the player connects.
func (r *Rules) onConnected(value, _ any, _ string) {
	if connected, _ := value.(bool); connected {
		r.sendConnectedIndicator()
		r.sendLyricsState()
	}
	r.recompute()
}

func (r *Rules) sendConnectedIndicator() {
	if !r.state.Player.Bool("connected") {
		return
	}
	r.send(hub.ConnectedIndicator(r.state.Settings.Bool("connectedIndicator")))
}

func (r *Rules) sendLyricsState() {
	if !r.state.Player.Bool("connected") {
		return
	}
	s := r.state.Settings
	r.send(hub.LyricsState(
		s.Bool("lyrics"),
		s.Float("lyricsFontSize"),
		s.Float("lyricsWidth"),
		s.Bool("lyricsAutoReload"),
	))
}

func (r *Rules) send(msg hub.Outbound) {
	if err := r.hub.Send(msg); err != nil {
		r.logger.Debug().Err(err).Str("type", msg.Type()).Msg("Failed to send message")
	}
}
