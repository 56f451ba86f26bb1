package scrobbler

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// createTestCache creates a cache on an in-memory SQLite database.
func createTestCache(t *testing.T) *Cache {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	cache, err := NewCache(db)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache
}

func testScrobble(i int) Scrobble {
	return Scrobble{
		Artist:    "Artist",
		Track:     fmt.Sprintf("Track %d", i),
		Album:     "Album",
		Duration:  3 * time.Minute,
		Timestamp: time.Unix(int64(1700000000+i*180), 0),
	}
}

func TestCacheAddAndPending(t *testing.T) {
	cache := createTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cache.Add(ctx, "alice", testScrobble(i)); err != nil {
			t.Fatalf("failed to add: %v", err)
		}
	}

	pending, err := cache.Pending(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to get pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}

	first := pending[0]
	want := testScrobble(0)
	if first.Track != want.Track || first.Artist != want.Artist || first.Album != want.Album {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.Duration != want.Duration {
		t.Errorf("expected duration %v, got %v", want.Duration, first.Duration)
	}
	if !first.Timestamp.Equal(want.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", want.Timestamp, first.Timestamp)
	}
	if first.User != "alice" {
		t.Errorf("expected user alice, got %q", first.User)
	}
}

func TestCacheCap(t *testing.T) {
	cache := createTestCache(t)
	ctx := context.Background()

	for i := 0; i < MaxCachedScrobbles+10; i++ {
		if err := cache.Add(ctx, "alice", testScrobble(i)); err != nil {
			t.Fatalf("failed to add %d: %v", i, err)
		}
	}

	count, err := cache.Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != MaxCachedScrobbles {
		t.Fatalf("expected %d entries, got %d", MaxCachedScrobbles, count)
	}

	pending, err := cache.Pending(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to get pending: %v", err)
	}
	if pending[0].Track != "Track 10" {
		t.Errorf("expected the oldest entries to be trimmed, first is %q", pending[0].Track)
	}
}

func TestCacheUserChangeDropsPreviousUser(t *testing.T) {
	cache := createTestCache(t)
	ctx := context.Background()

	if err := cache.Add(ctx, "alice", testScrobble(1)); err != nil {
		t.Fatalf("failed to add: %v", err)
	}
	if err := cache.Add(ctx, "bob", testScrobble(2)); err != nil {
		t.Fatalf("failed to add: %v", err)
	}

	alice, err := cache.Pending(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to get pending: %v", err)
	}
	if len(alice) != 0 {
		t.Errorf("expected alice's cache to be dropped, got %d", len(alice))
	}

	bob, err := cache.Pending(ctx, "bob")
	if err != nil {
		t.Fatalf("failed to get pending: %v", err)
	}
	if len(bob) != 1 {
		t.Errorf("expected 1 entry for bob, got %d", len(bob))
	}
}

func TestCacheRemoveDropClear(t *testing.T) {
	cache := createTestCache(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := cache.Add(ctx, "alice", testScrobble(i)); err != nil {
			t.Fatalf("failed to add: %v", err)
		}
	}

	pending, _ := cache.Pending(ctx, "alice")
	if err := cache.Remove(ctx, []int64{pending[0].ID, pending[1].ID}); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	if count, _ := cache.Count(ctx); count != 2 {
		t.Errorf("expected 2 after remove, got %d", count)
	}

	if err := cache.Remove(ctx, nil); err != nil {
		t.Errorf("remove of nothing failed: %v", err)
	}

	if err := cache.Drop(ctx, "bob"); err != nil {
		t.Fatalf("failed to drop: %v", err)
	}
	if count, _ := cache.Count(ctx); count != 2 {
		t.Errorf("dropping another user must not touch alice, got %d", count)
	}

	if err := cache.Drop(ctx, "alice"); err != nil {
		t.Fatalf("failed to drop: %v", err)
	}
	if count, _ := cache.Count(ctx); count != 0 {
		t.Errorf("expected empty cache, got %d", count)
	}

	_ = cache.Add(ctx, "alice", testScrobble(9))
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if count, _ := cache.Count(ctx); count != 0 {
		t.Errorf("expected empty cache after clear, got %d", count)
	}
}

func TestCacheSchemaIsIdempotent(t *testing.T) {
	cache := createTestCache(t)
	if _, err := NewCache(cache.db); err != nil {
		t.Fatalf("second NewCache failed: %v", err)
	}
}
