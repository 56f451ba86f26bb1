package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/playerhub/pkg/lastfm"
)

// newTestClient returns a client talking to handler.
func newTestClient(t *testing.T, sessionKey string, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(lastfm.Config{
		APIKey:       "test_key",
		APISecret:    "test_secret",
		SessionKey:   sessionKey,
		BaseURL:      server.URL,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestNew(t *testing.T) {
	if _, err := New(lastfm.Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error without secret")
	}

	client, err := New(lastfm.Config{APIKey: "k", APISecret: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.IsAuthenticated() {
		t.Error("expected client without session to be unauthenticated")
	}

	client.SetSessionKey("sk")
	if !client.IsAuthenticated() {
		t.Error("expected client to be authenticated")
	}
}

func TestAuthFlow(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.PostForm.Get("method") {
		case "auth.getToken":
			fmt.Fprint(w, `<lfm status="ok"><token>tok</token></lfm>`)
		case "auth.getSession":
			fmt.Fprint(w, `<lfm status="ok"><session><name>alice</name><key>sk-1</key><subscriber>0</subscriber></session></lfm>`)
		default:
			t.Errorf("unexpected method %s", r.PostForm.Get("method"))
		}
	})

	ctx := context.Background()
	token, authURL, err := client.AuthenticateWithToken(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "tok" || !strings.Contains(authURL, "token=tok") {
		t.Errorf("unexpected token %q / url %q", token, authURL)
	}

	key, user, err := client.GetSession(ctx, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-1" || user != "alice" {
		t.Errorf("expected sk-1/alice, got %s/%s", key, user)
	}
	if !client.IsAuthenticated() {
		t.Error("expected client to use the new session")
	}
}

func TestScrobble(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantIgnored bool
		wantAPICode int
	}{
		{
			name:     "accepted",
			response: `<lfm status="ok"><scrobbles accepted="1" ignored="0"><scrobble><ignoredMessage code="0"></ignoredMessage></scrobble></scrobbles></lfm>`,
		},
		{
			name:        "ignored",
			response:    `<lfm status="ok"><scrobbles accepted="0" ignored="1"><scrobble><ignoredMessage code="1">Artist was ignored</ignoredMessage></scrobble></scrobbles></lfm>`,
			wantIgnored: true,
		},
		{
			name:        "invalid session",
			response:    `<lfm status="failed"><error code="9">Invalid session key</error></lfm>`,
			wantAPICode: lastfm.ErrCodeInvalidSessionKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "sk", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.response)
			})

			err := client.Scrobble(context.Background(), testScrobble(0))
			switch {
			case tt.wantIgnored:
				var ierr *IgnoredError
				if !errors.As(err, &ierr) || ierr.Reason != "Artist was ignored" {
					t.Fatalf("expected IgnoredError, got %v", err)
				}
			case tt.wantAPICode != 0:
				var apiErr *lastfm.Error
				if !errors.As(err, &apiErr) || apiErr.Code != tt.wantAPICode {
					t.Fatalf("expected API error %d, got %v", tt.wantAPICode, err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestScrobbleBatch(t *testing.T) {
	tests := []struct {
		name      string
		scrobbles []Scrobble
		errorMsg  string
	}{
		{name: "empty batch", scrobbles: []Scrobble{}},
		{name: "batch too large", scrobbles: make([]Scrobble, 51), errorMsg: "cannot scrobble more than 50 tracks"},
		{name: "two", scrobbles: []Scrobble{testScrobble(1), testScrobble(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "sk", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `<lfm status="ok"><scrobbles accepted="%d" ignored="0"></scrobbles></lfm>`, len(tt.scrobbles))
			})

			err := client.ScrobbleBatch(context.Background(), tt.scrobbles)
			if tt.errorMsg != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
					t.Fatalf("expected error containing %q, got %v", tt.errorMsg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNowPlayingLoveUnlove(t *testing.T) {
	var methods []string
	client := newTestClient(t, "sk", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		methods = append(methods, r.PostForm.Get("method"))
		fmt.Fprint(w, `<lfm status="ok"><nowplaying></nowplaying></lfm>`)
	})

	ctx := context.Background()
	if err := client.NowPlaying(ctx, testScrobble(0)); err != nil {
		t.Fatalf("now playing failed: %v", err)
	}
	if err := client.Love(ctx, "Artist", "Track"); err != nil {
		t.Fatalf("love failed: %v", err)
	}
	if err := client.Unlove(ctx, "Artist", "Track"); err != nil {
		t.Fatalf("unlove failed: %v", err)
	}

	want := []string{"track.updateNowPlaying", "track.love", "track.unlove"}
	if strings.Join(methods, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, methods)
	}
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "service offline", err: &lastfm.Error{Code: 11}, want: true},
		{name: "temporarily unavailable", err: &lastfm.Error{Code: 16}, want: true},
		{name: "rate limited", err: fmt.Errorf("wrapped: %w", &lastfm.Error{Code: 29}), want: true},
		{name: "invalid session", err: &lastfm.Error{Code: 9}, want: false},
		{name: "server error", err: &lastfm.HTTPError{StatusCode: 502}, want: true},
		{name: "client error", err: &lastfm.HTTPError{StatusCode: 404}, want: false},
		{name: "timeout", err: context.DeadlineExceeded, want: true},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "ignored", err: &IgnoredError{Count: 1}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetriable(tt.err); got != tt.want {
				t.Errorf("IsRetriable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetriable_NetworkError(t *testing.T) {
	client, err := New(lastfm.Config{
		APIKey:       "k",
		APISecret:    "s",
		SessionKey:   "sk",
		BaseURL:      "http://127.0.0.1:1",
		MaxAttempts:  1,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	err = client.Love(context.Background(), "a", "b")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !IsRetriable(err) {
		t.Errorf("expected connection failure to be retriable: %v", err)
	}
}
