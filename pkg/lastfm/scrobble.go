package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
)

// ScrobbleService implements track.updateNowPlaying and track.scrobble.
type ScrobbleService struct {
	client *Client
}

// MaxBatchSize is the maximum number of scrobbles per track.scrobble call.
const MaxBatchSize = 50

// UpdateNowPlaying announces the track the user started listening to. It
// does not count as a scrobble. Requires a session key.
//
// Example:
//
//	_, err := client.Scrobble().UpdateNowPlaying(ctx, lastfm.Track{
//	    Artist: "The Beatles",
//	    Track:  "Yesterday",
//	})
func (s *ScrobbleService) UpdateNowPlaying(ctx context.Context, track Track) (*NowPlayingResponse, error) {
	params := make(map[string]string, 7)
	track.params(params, "")

	inner, err := s.client.call(ctx, "track.updateNowPlaying", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Artist         string         `xml:"nowplaying>artist"`
		Track          string         `xml:"nowplaying>track"`
		Album          string         `xml:"nowplaying>album"`
		AlbumArtist    string         `xml:"nowplaying>albumArtist"`
		IgnoredMessage IgnoredMessage `xml:"nowplaying>ignoredMessage"`
	}
	if err := xml.Unmarshal(wrapInner(inner), &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse now playing response: %w", err)
	}
	return &NowPlayingResponse{
		Artist:         resp.Artist,
		Track:          resp.Track,
		Album:          resp.Album,
		AlbumArtist:    resp.AlbumArtist,
		IgnoredMessage: resp.IgnoredMessage,
	}, nil
}

// Scrobble submits a single play.
func (s *ScrobbleService) Scrobble(ctx context.Context, scrobble Scrobble) (*ScrobbleResponse, error) {
	return s.ScrobbleBatch(ctx, []Scrobble{scrobble})
}

// ScrobbleBatch submits up to MaxBatchSize plays in one request. Extra
// entries are not sent. Requires a session key.
func (s *ScrobbleService) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) (*ScrobbleResponse, error) {
	if s.client.GetSessionKey() == "" {
		return nil, ErrNoSessionKey
	}
	if len(scrobbles) == 0 {
		return &ScrobbleResponse{}, nil
	}
	if len(scrobbles) > MaxBatchSize {
		scrobbles = scrobbles[:MaxBatchSize]
	}

	params := make(map[string]string, len(scrobbles)*4)
	for i, sc := range scrobbles {
		suffix := "[" + strconv.Itoa(i) + "]"
		sc.Track.params(params, suffix)
		params["timestamp"+suffix] = strconv.FormatInt(sc.Timestamp.Unix(), 10)
	}

	inner, err := s.client.call(ctx, "track.scrobble", params, true)
	if err != nil {
		return nil, err
	}
	return unmarshalScrobbles(inner)
}

func unmarshalScrobbles(inner []byte) (*ScrobbleResponse, error) {
	var resp struct {
		Scrobbles struct {
			Accepted int `xml:"accepted,attr"`
			Ignored  int `xml:"ignored,attr"`
			Items    []struct {
				Artist         string         `xml:"artist"`
				Track          string         `xml:"track"`
				Album          string         `xml:"album"`
				Timestamp      int64          `xml:"timestamp"`
				IgnoredMessage IgnoredMessage `xml:"ignoredMessage"`
			} `xml:"scrobble"`
		} `xml:"scrobbles"`
	}
	if err := xml.Unmarshal(wrapInner(inner), &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse scrobble response: %w", err)
	}

	out := &ScrobbleResponse{
		Accepted:  resp.Scrobbles.Accepted,
		Ignored:   resp.Scrobbles.Ignored,
		Scrobbles: make([]ScrobbleResult, len(resp.Scrobbles.Items)),
	}
	for i, sc := range resp.Scrobbles.Items {
		out.Scrobbles[i] = ScrobbleResult{
			Artist:         sc.Artist,
			Track:          sc.Track,
			Album:          sc.Album,
			Timestamp:      sc.Timestamp,
			IgnoredMessage: sc.IgnoredMessage,
		}
	}
	return out, nil
}
