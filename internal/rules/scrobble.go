package rules

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jfmyers9/playerhub/internal/scrobbler"
)

// shutdownGrace bounds the cache write of a scrobble whose call was
// cancelled.
const shutdownGrace = 5 * time.Second

// sameSong keeps a re-sent song.info from counting as a new song.
func sameSong(oldValue, newValue any) bool {
	return reflect.DeepEqual(oldValue, newValue)
}

// ParsePosition converts "m:ss" or "h:mm:ss" into seconds. Anything
// unparsable is zero.
func ParsePosition(position string) float64 {
	parts := strings.Split(strings.TrimSpace(position), ":")
	var total float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func duration(info map[string]any) float64 {
	d, _ := info["duration"].(float64)
	return d
}

func text(info map[string]any, key string) string {
	s, _ := info[key].(string)
	return s
}

// recompute derives song.scrobbleTime from the song and the settings.
func (r *Rules) recompute() {
	song := r.state.Song
	if song.Bool("scrobbled") {
		return
	}

	settings := r.state.Settings
	t := scrobbler.ScrobbleTime(scrobbler.Params{
		Duration:      duration(song.Map("info")),
		Enabled:       r.scrobblingEnabled() && r.state.Player.Bool("connected"),
		Percent:       settings.Float("scrobblePercent"),
		MaxTime:       settings.Float("scrobbleTime"),
		MaxDuration:   settings.Float("scrobbleMaxDuration"),
		FastForwarded: song.Bool("ff"),
		DisableOnFf:   settings.Bool("disableScrobbleOnFf"),
	})
	if err := song.Set("scrobbleTime", t); err != nil {
		r.logger.Error().Err(err).Msg("Failed to set scrobble time")
	}
}

func (r *Rules) onSongChange(value, _ any, _ string) {
	song := r.state.Song
	for name, v := range map[string]any{"scrobbled": false, "nowPlayingSent": false, "loved": nil} {
		if err := song.Set(name, v); err != nil {
			r.logger.Error().Err(err).Str("property", name).Msg("Failed to reset song state")
		}
	}

	info, _ := value.(map[string]any)
	var ts any
	if info != nil {
		ts = float64(r.clock.Now().Unix())
	}
	if err := song.Set("timestamp", ts); err != nil {
		r.logger.Error().Err(err).Msg("Failed to stamp song")
	}
	r.recompute()

	if info == nil || !r.scrobblingEnabled() {
		return
	}
	s := r.current()
	r.logger.Debug().Str("artist", s.Artist).Str("track", s.Track).Msg("New song")
	r.async(func(ctx context.Context) { r.nowPlaying(ctx, s) })
}

func (r *Rules) onPosition(value, _ any, _ string) {
	position, _ := value.(string)
	if err := r.state.Song.Set("positionSec", ParsePosition(position)); err != nil {
		r.logger.Error().Err(err).Msg("Failed to set position")
	}
}

func (r *Rules) onPositionSec(value, _ any, _ string) {
	song := r.state.Song
	at := song.Float("scrobbleTime")
	if at < 0 || song.Bool("scrobbled") {
		return
	}
	if pos, _ := value.(float64); pos < at {
		return
	}
	user := r.user()
	if user == "" {
		return
	}
	if err := song.Set("scrobbled", true); err != nil {
		r.logger.Error().Err(err).Msg("Failed to mark song scrobbled")
		return
	}

	s := r.current()
	r.async(func(ctx context.Context) { r.submit(ctx, user, s) })
}

// current builds the remote payload for the song in the store.
func (r *Rules) current() scrobbler.Scrobble {
	song := r.state.Song
	info := song.Map("info")
	s := scrobbler.Scrobble{
		Artist:      text(info, "artist"),
		Track:       text(info, "title"),
		Album:       text(info, "album"),
		AlbumArtist: text(info, "albumArtist"),
		Duration:    time.Duration(duration(info) * float64(time.Second)),
		Timestamp:   r.clock.Now(),
	}
	if ts := song.Float("timestamp"); ts > 0 {
		s.Timestamp = time.Unix(int64(ts), 0)
	}
	return s
}

func (r *Rules) nowPlaying(ctx context.Context, s scrobbler.Scrobble) {
	if err := r.remote.NowPlaying(ctx, s); err != nil {
		r.logger.Warn().Err(err).Str("track", s.Track).Msg("Failed to update now playing")
		return
	}
	r.state.Do(func() {
		if !sameTrack(r.current(), s) {
			return
		}
		if err := r.state.Song.Set("nowPlayingSent", true); err != nil {
			r.logger.Error().Err(err).Msg("Failed to mark now playing")
		}
	})
}

func sameTrack(a, b scrobbler.Scrobble) bool {
	return a.Artist == b.Artist && a.Track == b.Track && a.Album == b.Album
}

// submit scrobbles s for user and applies the retry cache policy to the
// outcome.
func (r *Rules) submit(ctx context.Context, user string, s scrobbler.Scrobble) {
	err := r.remote.Scrobble(ctx, s)
	log := r.logger.With().Str("user", user).Str("artist", s.Artist).Str("track", s.Track).Logger()

	var ignored *scrobbler.IgnoredError
	switch {
	case err == nil:
		log.Info().Msg("Scrobbled")
		r.flushCache(ctx, user)

	case errors.As(err, &ignored):
		log.Warn().Err(err).Msg("Scrobble ignored")

	case errors.Is(err, context.Canceled):
		cctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		r.cacheScrobble(cctx, user, s, err)

	case scrobbler.IsRetriable(err):
		r.cacheScrobble(ctx, user, s, err)
		r.retry.Schedule(r.retryDelay)

	default:
		log.Error().Err(err).Msg("Scrobble failed")
		if err := r.cache.Drop(ctx, user); err != nil {
			log.Error().Err(err).Msg("Failed to drop scrobble cache")
		}
	}
}

func (r *Rules) cacheScrobble(ctx context.Context, user string, s scrobbler.Scrobble, cause error) {
	if err := r.cache.Add(ctx, user, s); err != nil {
		r.logger.Error().Err(err).AnErr("cause", cause).Str("track", s.Track).Msg("Failed to cache scrobble")
		return
	}
	r.logger.Warn().Err(cause).Str("track", s.Track).Msg("Scrobble cached for retry")
}

// flushCache resubmits every cached scrobble of user in one batch.
func (r *Rules) flushCache(ctx context.Context, user string) {
	pending, err := r.cache.Pending(ctx, user)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to read scrobble cache")
		return
	}
	if len(pending) == 0 {
		return
	}

	batch := make([]scrobbler.Scrobble, len(pending))
	ids := make([]int64, len(pending))
	for i, p := range pending {
		batch[i] = p.Scrobble
		ids[i] = p.ID
	}

	err = r.remote.ScrobbleBatch(ctx, batch)
	var ignored *scrobbler.IgnoredError
	switch {
	case err == nil || errors.As(err, &ignored):
		if err := r.cache.Remove(ctx, ids); err != nil {
			r.logger.Error().Err(err).Msg("Failed to remove flushed scrobbles")
			return
		}
		r.logger.Info().Int("count", len(ids)).Err(err).Msg("Flushed scrobble cache")

	case errors.Is(err, context.Canceled):
		r.logger.Debug().Msg("Scrobble cache flush cancelled")

	case scrobbler.IsRetriable(err):
		r.logger.Warn().Err(err).Int("count", len(ids)).Msg("Scrobble cache flush failed")
		r.retry.Schedule(r.retryDelay)

	default:
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("Dropping scrobble cache")
		if err := r.cache.Drop(ctx, user); err != nil {
			r.logger.Error().Err(err).Msg("Failed to drop scrobble cache")
		}
	}
}
