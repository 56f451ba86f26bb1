package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// itunesStub answers searches for the entities in found and records the
// entity of every request.
type itunesStub struct {
	mu       sync.Mutex
	found    map[string]bool
	entities []string
	status   int
}

func (s *itunesStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	s.mu.Lock()
	s.entities = append(s.entities, entity)
	s.mu.Unlock()

	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	var resp itunesResponse
	if s.found[entity] {
		resp.Results = []itunesResult{{ArtworkURL100: "https://example.com/" + entity + "/100x100bb.jpg"}}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *itunesStub) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entities...)
}

func newStubLookup(t *testing.T, stub *itunesStub) *artworkLookup {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	a := newArtworkLookup()
	a.endpoint = srv.URL
	return a
}

func TestArtworkLookup(t *testing.T) {
	tests := []struct {
		name         string
		found        map[string]bool
		status       int
		album        string
		want         string
		wantRequests []string
	}{
		{
			name:         "album hit",
			found:        map[string]bool{"album": true},
			album:        "In Rainbows",
			want:         "https://example.com/album/600x600bb.jpg",
			wantRequests: []string{"album"},
		},
		{
			name:         "falls back to song",
			found:        map[string]bool{"song": true},
			album:        "In Rainbows",
			want:         "https://example.com/song/600x600bb.jpg",
			wantRequests: []string{"album", "song"},
		},
		{
			name:         "no album searches the song",
			found:        map[string]bool{"album": true, "song": true},
			want:         "https://example.com/song/600x600bb.jpg",
			wantRequests: []string{"song"},
		},
		{
			name:         "no results",
			album:        "In Rainbows",
			wantRequests: []string{"album", "song"},
		},
		{
			name:         "http error",
			status:       http.StatusInternalServerError,
			album:        "In Rainbows",
			wantRequests: []string{"album", "song"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &itunesStub{found: tt.found, status: tt.status}
			a := newStubLookup(t, stub)

			if got := a.Lookup(context.Background(), "Radiohead", tt.album, "Reckoner"); got != tt.want {
				t.Errorf("Lookup() = %q, want %q", got, tt.want)
			}
			got := stub.requests()
			if len(got) != len(tt.wantRequests) {
				t.Fatalf("requests = %v, want %v", got, tt.wantRequests)
			}
			for i := range got {
				if got[i] != tt.wantRequests[i] {
					t.Errorf("requests = %v, want %v", got, tt.wantRequests)
				}
			}
		})
	}
}

func TestArtworkLookup_CachesHitsCaseInsensitively(t *testing.T) {
	stub := &itunesStub{found: map[string]bool{"album": true}}
	a := newStubLookup(t, stub)

	a.Lookup(context.Background(), "Radiohead", "In Rainbows", "Reckoner")
	a.Lookup(context.Background(), "radiohead", "in rainbows", "reckoner")

	if n := len(stub.requests()); n != 1 {
		t.Errorf("expected 1 HTTP request, got %d", n)
	}
}

func TestArtworkLookup_MissesExpire(t *testing.T) {
	stub := &itunesStub{}
	a := newStubLookup(t, stub)
	now := time.Now()
	a.now = func() time.Time { return now }

	a.Lookup(context.Background(), "Unknown", "Album", "Song")
	first := len(stub.requests())

	a.Lookup(context.Background(), "Unknown", "Album", "Song")
	if n := len(stub.requests()); n != first {
		t.Errorf("miss not cached: %d more requests", n-first)
	}

	now = now.Add(negativeCacheTTL + time.Second)
	a.Lookup(context.Background(), "Unknown", "Album", "Song")
	if n := len(stub.requests()); n == first {
		t.Error("expected new requests after the miss expired")
	}
}

func TestArtworkLookup_Unreachable(t *testing.T) {
	a := newArtworkLookup()
	a.endpoint = "http://127.0.0.1:1"

	if got := a.Lookup(context.Background(), "Artist", "Album", "Song"); got != "" {
		t.Errorf("expected empty string on connection error, got %q", got)
	}
}
