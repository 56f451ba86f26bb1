package scrobbler

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MaxCachedScrobbles bounds the retry cache. It matches the batch limit
// so a flush always fits one request.
const MaxCachedScrobbles = 50

// Cache holds scrobbles that failed with a retriable error, for the one
// authenticated user. Adding a scrobble for another user discards the
// previous user's entries.
type Cache struct {
	db *sql.DB
}

// CachedScrobble is a scrobble waiting for a retry.
type CachedScrobble struct {
	ID   int64
	User string
	Scrobble
}

// NewCache creates the cache table in db. The handle is shared with the
// property storage and is not closed by the cache.
func NewCache(db *sql.DB) (*Cache, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS scrobble_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user TEXT NOT NULL,
			track_name TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			album_artist TEXT,
			duration INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_scrobble_cache_user ON scrobble_cache(user, id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Add appends a scrobble for user and trims the cache to the newest
// MaxCachedScrobbles entries.
func (c *Cache) Add(ctx context.Context, user string, s Scrobble) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM scrobble_cache WHERE user != ?", user); err != nil {
		return fmt.Errorf("failed to drop other users: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scrobble_cache (user, track_name, artist, album, album_artist, duration, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user, s.Track, s.Artist, s.Album, s.AlbumArtist, int64(s.Duration.Seconds()), s.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert scrobble: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM scrobble_cache
		WHERE id NOT IN (SELECT id FROM scrobble_cache ORDER BY id DESC LIMIT ?)
	`, MaxCachedScrobbles)
	if err != nil {
		return fmt.Errorf("failed to trim cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Pending returns the cached scrobbles of user, oldest first.
func (c *Cache) Pending(ctx context.Context, user string) ([]CachedScrobble, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user, track_name, artist, COALESCE(album, ''), COALESCE(album_artist, ''), duration, timestamp
		FROM scrobble_cache
		WHERE user = ?
		ORDER BY id ASC
	`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached scrobbles: %w", err)
	}
	defer rows.Close()

	var out []CachedScrobble
	for rows.Next() {
		var s CachedScrobble
		var durationSecs, timestampUnix int64
		if err := rows.Scan(&s.ID, &s.User, &s.Track, &s.Artist, &s.Album, &s.AlbumArtist, &durationSecs, &timestampUnix); err != nil {
			return nil, fmt.Errorf("failed to scan scrobble: %w", err)
		}
		s.Duration = time.Duration(durationSecs) * time.Second
		s.Timestamp = time.Unix(timestampUnix, 0)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scrobbles: %w", err)
	}
	return out, nil
}

// Remove deletes specific entries, typically after a successful flush.
func (c *Cache) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM scrobble_cache WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to remove scrobble %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Drop discards every entry of user.
func (c *Cache) Drop(ctx context.Context, user string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM scrobble_cache WHERE user = ?", user); err != nil {
		return fmt.Errorf("failed to drop cached scrobbles: %w", err)
	}
	return nil
}

// Clear discards every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM scrobble_cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Count returns the number of cached entries.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scrobble_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cached scrobbles: %w", err)
	}
	return count, nil
}
