package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// negativeCacheTTL is how long a failed lookup is remembered.
const negativeCacheTTL = 10 * time.Minute

// artworkLookup finds cover URLs through the iTunes Search API. Found
// URLs are cached for the process lifetime, misses for negativeCacheTTL.
type artworkLookup struct {
	mu       sync.Mutex
	cache    map[string]artworkEntry
	client   *http.Client
	endpoint string
	now      func() time.Time
}

type artworkEntry struct {
	url     string
	checked time.Time
}

func newArtworkLookup() *artworkLookup {
	return &artworkLookup{
		cache:    make(map[string]artworkEntry),
		client:   &http.Client{Timeout: 3 * time.Second},
		endpoint: "https://itunes.apple.com/search",
		now:      time.Now,
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Lookup returns a cover URL for the song, or "" when none is found.
// The album is searched first, then the song itself.
func (a *artworkLookup) Lookup(ctx context.Context, artist, album, title string) string {
	key := strings.ToLower(artist + "|" + album + "|" + title)
	a.mu.Lock()
	if e, ok := a.cache[key]; ok && (e.url != "" || a.now().Sub(e.checked) < negativeCacheTTL) {
		a.mu.Unlock()
		return e.url
	}
	a.mu.Unlock()

	var artURL string
	if album != "" {
		artURL = a.fetch(ctx, artist+" "+album, "album")
	}
	if artURL == "" && title != "" {
		artURL = a.fetch(ctx, artist+" "+title, "song")
	}

	a.mu.Lock()
	a.cache[key] = artworkEntry{url: artURL, checked: a.now()}
	a.mu.Unlock()
	return artURL
}

func (a *artworkLookup) fetch(ctx context.Context, term, entity string) string {
	query := url.Values{
		"term":   {term},
		"entity": {entity},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", a.endpoint, query.Encode()), nil)
	if err != nil {
		return ""
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// 600x600 instead of the 100x100 thumbnail
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}
