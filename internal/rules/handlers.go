package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jfmyers9/playerhub/internal/hub"
)

// LovedRating is the rating that loves a song when ratings are linked.
const LovedRating = 5

// LyricsQuery identifies the song to look up.
type LyricsQuery struct {
	Artist   string
	Title    string
	Album    string
	Duration float64
}

// LyricsProvider looks up lyrics for a song.
type LyricsProvider interface {
	Name() string
	Lookup(ctx context.Context, q LyricsQuery) (hub.LyricsResult, error)
}

type ratedValue struct {
	Song *struct {
		Artist string `json:"artist"`
		Title  string `json:"title"`
	} `json:"song"`
	Rating float64 `json:"rating"`
}

// handleRated stores the rating the player reported and mirrors it as a
// love when ratings are linked.
func (r *Rules) handleRated(raw json.RawMessage) error {
	var v ratedValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to decode rating: %w", err)
	}

	info := r.state.Song.Map("info")
	artist, title := text(info, "artist"), text(info, "title")
	current := true
	if v.Song != nil && (v.Song.Artist != artist || v.Song.Title != title) {
		artist, title = v.Song.Artist, v.Song.Title
		current = false
	}

	if current {
		if err := r.state.Song.Set("rating", v.Rating); err != nil {
			return err
		}
	}

	if !r.state.Settings.Bool("linkRatings") || r.user() == "" || artist == "" || title == "" {
		return nil
	}

	love := v.Rating >= LovedRating
	r.async(func(ctx context.Context) { r.setLoved(ctx, artist, title, love, current) })
	return nil
}

func (r *Rules) setLoved(ctx context.Context, artist, title string, love, current bool) {
	call := r.remote.Unlove
	if love {
		call = r.remote.Love
	}

	log := r.logger.With().Str("artist", artist).Str("track", title).Bool("love", love).Logger()
	err := call(ctx, artist, title)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to update loved state")
		love = false
	} else {
		log.Debug().Msg("Updated loved state")
	}

	if !current {
		return
	}
	r.state.Do(func() {
		if !r.stillPlaying(artist, title) {
			return
		}
		if err := r.state.Song.Set("loved", love); err != nil {
			log.Error().Err(err).Msg("Failed to set loved")
		}
	})
}

func (r *Rules) stillPlaying(artist, title string) bool {
	info := r.state.Song.Map("info")
	return text(info, "artist") == artist && text(info, "title") == title
}

// handleLoadLyrics answers with the provider's lookup for the current
// song.
func (r *Rules) handleLoadLyrics(json.RawMessage) error {
	if !r.state.Settings.Bool("lyrics") {
		r.send(hub.Lyrics(hub.LyricsResult{Error: "Lyrics are disabled"}, nil, ""))
		return nil
	}
	if r.lyrics == nil {
		r.send(hub.Lyrics(hub.LyricsResult{Error: "No lyrics provider configured"}, nil, ""))
		return nil
	}

	info := r.state.Song.Map("info")
	if info == nil {
		r.send(hub.Lyrics(hub.LyricsResult{NoResult: true}, []string{r.lyrics.Name()}, ""))
		return nil
	}

	q := LyricsQuery{
		Artist:   text(info, "artist"),
		Title:    text(info, "title"),
		Album:    text(info, "album"),
		Duration: duration(info),
	}
	provider := r.lyrics
	r.async(func(ctx context.Context) {
		result, err := provider.Lookup(ctx, q)
		if err != nil {
			r.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("Lyrics lookup failed")
			result = hub.LyricsResult{Error: err.Error()}
		}
		if result.Provider == "" {
			result.Provider = provider.Name()
		}
		r.send(hub.Lyrics(result, []string{provider.Name()}, provider.Name()))
	})
	return nil
}
