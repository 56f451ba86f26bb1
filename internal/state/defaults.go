package state

// Store names, also used as SQLite namespaces and sync file sections.
const (
	SettingsStore      = "settings"
	LocalSettingsStore = "localSettings"
	PlayerStore        = "player"
	SongStore          = "song"
)

// ZeroPosition is the canonical position of a song that has not started.
const ZeroPosition = "0:00"

// SettingsDefaults are the user behaviour settings. They are persisted
// locally and optionally synced. Durations are in seconds.
func SettingsDefaults() map[string]any {
	return map[string]any{
		"scrobble":            true,
		"scrobblePercent":     50,
		"scrobbleTime":        240,
		"scrobbleMaxDuration": 0,
		"disableScrobbleOnFf": false,
		"linkRatings":         false,
		"connectedIndicator":  true,
		"lyrics":              true,
		"lyricsFontSize":      11,
		"lyricsWidth":         250,
		"lyricsAutoReload":    false,
	}
}

// LocalSettingsDefaults hold per-machine values that are never synced.
func LocalSettingsDefaults() map[string]any {
	return map[string]any{
		"lastfmSessionKey":  "",
		"lastfmSessionName": "",
		"syncSettings":      false,
	}
}

// PlayerDefaults mirror the player page. Reset on disconnect.
func PlayerDefaults() map[string]any {
	return map[string]any{
		"connected":      false,
		"ratingMode":     nil,
		"quicklinks":     nil,
		"playing":        false,
		"shuffle":        "",
		"repeat":         "",
		"volume":         nil,
		"navigationList": nil,
	}
}

// SongDefaults describe the current song. info is nil or an object with
// title, artist, album, albumArtist and duration (seconds).
func SongDefaults() map[string]any {
	return map[string]any{
		"info":           nil,
		"position":       ZeroPosition,
		"positionSec":    0,
		"rating":         0,
		"ff":             false,
		"scrobbled":      false,
		"nowPlayingSent": false,
		"scrobbleTime":   -1,
		"timestamp":      nil,
		"loved":          nil,
	}
}
