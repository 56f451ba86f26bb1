package hub

import (
	"encoding/json"
)

// Inbound message types that are not store writes.
const (
	TypeConnected  = "connected"
	TypeLoadLyrics = "loadLyrics"
	TypeRated      = "rated"

	songPrefix   = "song-"
	playerPrefix = "player-"
)

// Inbound is a message from the player endpoint.
type Inbound struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Outbound is a message to the player endpoint. It is a flat JSON object
// whose "type" field selects the message.
type Outbound map[string]any

// Type returns the message type.
func (o Outbound) Type() string {
	t, _ := o["type"].(string)
	return t
}

// ConnectedAck acknowledges a connection.
func ConnectedAck() Outbound {
	return Outbound{"type": "connected"}
}

// AlreadyConnected rejects a second connection from the same source.
func AlreadyConnected() Outbound {
	return Outbound{"type": "alreadyConnected"}
}

// Execute asks the player to run a command (playPause, nextSong,
// prevSong, toggleRepeat, toggleShuffle, rate, setVolume).
func Execute(command string, options any) Outbound {
	return Outbound{"type": "execute", "command": command, "options": options}
}

// LyricsResult is the outcome of a lyrics lookup.
type LyricsResult struct {
	Lyrics   string `json:"lyrics,omitempty"`
	Title    string `json:"title,omitempty"`
	Credits  string `json:"credits,omitempty"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
	NoResult bool   `json:"noresult,omitempty"`
}

// Lyrics answers a loadLyrics request.
func Lyrics(result LyricsResult, providers []string, src string) Outbound {
	if providers == nil {
		providers = []string{}
	}
	return Outbound{"type": "lyrics", "result": result, "providers": providers, "src": src}
}

// ConnectedIndicator toggles the connection badge on the player page.
func ConnectedIndicator(show bool) Outbound {
	return Outbound{"type": "connectedIndicator", "show": show}
}

// LyricsState pushes the lyrics display settings.
func LyricsState(enabled bool, fontSize, width float64, autoReload bool) Outbound {
	return Outbound{
		"type":       "lyricsState",
		"enabled":    enabled,
		"fontSize":   fontSize,
		"width":      width,
		"autoReload": autoReload,
	}
}

// GetNavigationList asks the player for the list behind link.
func GetNavigationList(link, search string, omitUnknownAlbums bool) Outbound {
	return Outbound{
		"type":              "getNavigationList",
		"link":              link,
		"search":            search,
		"omitUnknownAlbums": omitUnknownAlbums,
	}
}

// SelectLink navigates the player to link.
func SelectLink(link string) Outbound {
	return Outbound{"type": "selectLink", "link": link}
}

// StartPlaylist starts playback of the list behind link.
func StartPlaylist(link string) Outbound {
	return Outbound{"type": "startPlaylist", "link": link}
}

// LastSong identifies where playback stopped.
type LastSong struct {
	AlbumLink string  `json:"albumLink"`
	Artist    string  `json:"artist"`
	Title     string  `json:"title"`
	Duration  string  `json:"duration"`
	Position  float64 `json:"position"`
}

// ResumeLastSong asks the player to continue a previous song.
func ResumeLastSong(s LastSong) Outbound {
	return Outbound{
		"type":      "resumeLastSong",
		"albumLink": s.AlbumLink,
		"artist":    s.Artist,
		"title":     s.Title,
		"duration":  s.Duration,
		"position":  s.Position,
	}
}
