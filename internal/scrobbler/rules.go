package scrobbler

const (
	// MinimumScrobbleOffset is the earliest point of a song, and the
	// latest distance from its end, at which it can be scrobbled (seconds).
	MinimumScrobbleOffset = 3.0

	// MinimumSongDuration is the shortest song that can be scrobbled
	// (seconds). Shorter songs leave no valid window between the offsets.
	MinimumSongDuration = 2 * MinimumScrobbleOffset

	// Never is the scrobble time of a song that must not be scrobbled.
	Never = -1.0
)

// Params are the inputs of the scrobble time computation. Times are in
// seconds.
type Params struct {
	// Duration of the current song; zero or less means no song.
	Duration float64

	// Enabled is false when scrobbling is switched off or no user is
	// authenticated.
	Enabled bool

	// Percent of the song that must be played.
	Percent float64

	// MaxTime caps the scrobble time when greater than zero.
	MaxTime float64

	// MaxDuration excludes longer songs when greater than zero.
	MaxDuration float64

	FastForwarded bool
	DisableOnFf   bool
}

// ScrobbleTime returns the playback position at which the current song
// is scrobbled, or Never.
//
// Songs shorter than MinimumSongDuration are never scrobbled. Otherwise
// the time is Percent of the duration, capped at MaxTime and clamped into
// [MinimumScrobbleOffset, Duration-MinimumScrobbleOffset].
func ScrobbleTime(p Params) float64 {
	switch {
	case p.Duration <= 0, !p.Enabled:
		return Never
	case p.MaxDuration > 0 && p.Duration > p.MaxDuration:
		return Never
	case p.FastForwarded && p.DisableOnFf:
		return Never
	case p.Duration < MinimumSongDuration:
		return Never
	}

	t := p.Duration * (p.Percent / 100)
	if p.MaxTime > 0 && t > p.MaxTime {
		t = p.MaxTime
	}
	if t < MinimumScrobbleOffset {
		t = MinimumScrobbleOffset
	}
	if upper := p.Duration - MinimumScrobbleOffset; t > upper {
		t = upper
	}
	return t
}
