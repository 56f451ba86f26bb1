package lastfm

import (
	"strconv"
	"time"
)

// Track identifies a song for scrobbling, now playing and love calls.
type Track struct {
	Artist      string // Required
	Track       string // Required
	Album       string
	AlbumArtist string
	Duration    int // seconds
	TrackNumber int
	MBTrackID   string
}

// params appends the track fields under an optional batch suffix such as
// "[0]". Empty optional fields are omitted.
func (t Track) params(dst map[string]string, suffix string) {
	dst["artist"+suffix] = t.Artist
	dst["track"+suffix] = t.Track
	if t.Album != "" {
		dst["album"+suffix] = t.Album
	}
	if t.AlbumArtist != "" {
		dst["albumArtist"+suffix] = t.AlbumArtist
	}
	if t.Duration > 0 {
		dst["duration"+suffix] = strconv.Itoa(t.Duration)
	}
	if t.TrackNumber > 0 {
		dst["trackNumber"+suffix] = strconv.Itoa(t.TrackNumber)
	}
	if t.MBTrackID != "" {
		dst["mbid"+suffix] = t.MBTrackID
	}
}

// Scrobble is a track with the time it started playing.
type Scrobble struct {
	Track     Track
	Timestamp time.Time
}

// Token is returned by auth.getToken.
type Token struct {
	Token string
}

// Session is returned by auth.getSession.
type Session struct {
	Key        string
	Username   string
	Subscriber bool
}

// IgnoredMessage explains why Last.fm ignored a submission. Code 0 means
// the submission was accepted.
type IgnoredMessage struct {
	Code int    `xml:"code,attr"`
	Text string `xml:",chardata"`
}

// NowPlayingResponse is returned by track.updateNowPlaying.
type NowPlayingResponse struct {
	Artist         string
	Track          string
	Album          string
	AlbumArtist    string
	IgnoredMessage IgnoredMessage
}

// ScrobbleResult is the per-track outcome of track.scrobble.
type ScrobbleResult struct {
	Artist         string
	Track          string
	Album          string
	Timestamp      int64
	IgnoredMessage IgnoredMessage
}

// ScrobbleResponse is returned by track.scrobble.
type ScrobbleResponse struct {
	Accepted  int
	Ignored   int
	Scrobbles []ScrobbleResult
}
