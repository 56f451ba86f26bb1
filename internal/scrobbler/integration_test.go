//go:build integration

package scrobbler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jfmyers9/playerhub/pkg/lastfm"
)

// liveClient returns a client for the real API.
// Requires: LASTFM_API_KEY, LASTFM_API_SECRET and, for authenticated
// calls, LASTFM_SESSION_KEY.
func liveClient(t *testing.T, needSession bool) *Client {
	t.Helper()

	cfg := lastfm.Config{
		APIKey:     os.Getenv("LASTFM_API_KEY"),
		APISecret:  os.Getenv("LASTFM_API_SECRET"),
		SessionKey: os.Getenv("LASTFM_SESSION_KEY"),
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		t.Skip("Skipping integration test: LASTFM_API_KEY and LASTFM_API_SECRET must be set")
	}
	if needSession && cfg.SessionKey == "" {
		t.Skip("Skipping integration test: LASTFM_SESSION_KEY must be set")
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

// Run with: go test -tags=integration -v ./internal/scrobbler/
func TestIntegration_LastFmAuth(t *testing.T) {
	client := liveClient(t, false)

	token, authURL, err := client.AuthenticateWithToken(context.Background())
	if err != nil {
		t.Fatalf("Failed to get auth token: %v", err)
	}
	if token == "" || authURL == "" {
		t.Error("Expected non-empty token and auth URL")
	}
	t.Logf("Auth URL: %s", authURL)
}

func TestIntegration_NowPlayingAndScrobble(t *testing.T) {
	client := liveClient(t, true)
	ctx := context.Background()

	s := Scrobble{
		Artist:    "The Beatles",
		Track:     "Here Comes the Sun",
		Album:     "Abbey Road",
		Duration:  185 * time.Second,
		Timestamp: time.Now().Add(-3 * time.Minute),
	}

	if err := client.NowPlaying(ctx, s); err != nil {
		t.Fatalf("Failed to update now playing: %v", err)
	}
	if err := client.Scrobble(ctx, s); err != nil {
		t.Fatalf("Failed to scrobble: %v", err)
	}
	if err := client.Love(ctx, s.Artist, s.Track); err != nil {
		t.Fatalf("Failed to love: %v", err)
	}
	if err := client.Unlove(ctx, s.Artist, s.Track); err != nil {
		t.Fatalf("Failed to unlove: %v", err)
	}
}
