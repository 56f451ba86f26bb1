package scrobbler

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/playerhub/pkg/lastfm"
)

// Client wraps the Last.fm API client.
type Client struct {
	client *lastfm.Client
}

// Scrobble is one play of a song.
type Scrobble struct {
	Artist      string
	Track       string
	Album       string
	AlbumArtist string
	Timestamp   time.Time
	Duration    time.Duration
}

func (s Scrobble) track() lastfm.Track {
	t := lastfm.Track{
		Artist:      s.Artist,
		Track:       s.Track,
		Album:       s.Album,
		AlbumArtist: s.AlbumArtist,
	}
	if s.Duration > 0 {
		t.Duration = int(s.Duration.Seconds())
	}
	return t
}

// New creates a client. cfg.SessionKey may be empty until the user
// authenticates.
func New(cfg lastfm.Config) (*Client, error) {
	client, err := lastfm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create lastfm client: %w", err)
	}
	return &Client{client: client}, nil
}

// AuthenticateWithToken starts the auth flow and returns the token and
// the URL the user must visit to authorize it.
func (c *Client) AuthenticateWithToken(ctx context.Context) (token string, authURL string, err error) {
	tok, err := c.client.Auth().GetToken(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to get auth token: %w", err)
	}
	return tok.Token, c.client.Auth().GetAuthURL(tok.Token), nil
}

// GetSession completes the auth flow after the user authorized token.
// The client uses the new session from then on.
func (c *Client) GetSession(ctx context.Context, token string) (sessionKey, username string, err error) {
	session, err := c.client.Auth().GetSession(ctx, token)
	if err != nil {
		return "", "", fmt.Errorf("failed to login with token: %w", err)
	}
	if session.Key == "" {
		return "", "", fmt.Errorf("received empty session key")
	}

	c.client.SetSessionKey(session.Key)
	return session.Key, session.Username, nil
}

// SetSessionKey switches the authenticated user. An empty key logs out.
func (c *Client) SetSessionKey(key string) {
	c.client.SetSessionKey(key)
}

// IsAuthenticated reports whether a session key is set.
func (c *Client) IsAuthenticated() bool {
	return c.client.GetSessionKey() != ""
}

// NowPlaying announces s as the current song. The timestamp is ignored.
func (c *Client) NowPlaying(ctx context.Context, s Scrobble) error {
	if _, err := c.client.Scrobble().UpdateNowPlaying(ctx, s.track()); err != nil {
		return fmt.Errorf("failed to update now playing: %w", err)
	}
	return nil
}

// Scrobble submits one play.
func (c *Client) Scrobble(ctx context.Context, s Scrobble) error {
	resp, err := c.client.Scrobble().Scrobble(ctx, lastfm.Scrobble{Track: s.track(), Timestamp: s.Timestamp})
	if err != nil {
		return fmt.Errorf("failed to scrobble track: %w", err)
	}
	if resp.Ignored > 0 {
		ierr := &IgnoredError{Count: resp.Ignored}
		if len(resp.Scrobbles) > 0 {
			ierr.Reason = resp.Scrobbles[0].IgnoredMessage.Text
		}
		return ierr
	}
	return nil
}

// ScrobbleBatch submits up to lastfm.MaxBatchSize plays in one request.
func (c *Client) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) error {
	if len(scrobbles) == 0 {
		return nil
	}
	if len(scrobbles) > lastfm.MaxBatchSize {
		return fmt.Errorf("cannot scrobble more than %d tracks at once (got %d)", lastfm.MaxBatchSize, len(scrobbles))
	}

	batch := make([]lastfm.Scrobble, len(scrobbles))
	for i, s := range scrobbles {
		batch[i] = lastfm.Scrobble{Track: s.track(), Timestamp: s.Timestamp}
	}

	resp, err := c.client.Scrobble().ScrobbleBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to scrobble batch: %w", err)
	}
	if resp.Ignored > 0 {
		return &IgnoredError{Count: resp.Ignored}
	}
	return nil
}

// Love marks a song as loved.
func (c *Client) Love(ctx context.Context, artist, track string) error {
	if err := c.client.Track().Love(ctx, artist, track); err != nil {
		return fmt.Errorf("failed to love track: %w", err)
	}
	return nil
}

// Unlove removes a song from the loved tracks.
func (c *Client) Unlove(ctx context.Context, artist, track string) error {
	if err := c.client.Track().Unlove(ctx, artist, track); err != nil {
		return fmt.Errorf("failed to unlove track: %w", err)
	}
	return nil
}
