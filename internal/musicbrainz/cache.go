package musicbrainz

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/franz/albumhound/internal/util"
)

// Cache stores raw MusicBrainz responses in the musicbrainz_cache table,
// keyed by request path and query
type Cache struct {
	db  *sqlx.DB
	ttl time.Duration
}

// NewCache creates a new cache instance; ttl <= 0 never expires entries
func NewCache(db *sqlx.DB, ttl time.Duration) *Cache {
	return &Cache{db: db, ttl: ttl}
}

// Get returns a cached body that is younger than the TTL
func (c *Cache) Get(key string) ([]byte, bool) {
	var row struct {
		Body     []byte    `db:"body"`
		CachedAt time.Time `db:"cached_at"`
	}
	err := c.db.Get(&row, `SELECT body, cached_at FROM musicbrainz_cache WHERE cache_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		util.DebugLog("MusicBrainz cache read failed: %v", err)
		return nil, false
	}
	if c.ttl > 0 && time.Since(row.CachedAt) > c.ttl {
		return nil, false
	}

	if _, err := c.db.Exec(`UPDATE musicbrainz_cache SET hit_count = hit_count + 1 WHERE cache_key = ?`, key); err != nil {
		util.DebugLog("Failed to increment hit count: %v", err)
	}
	return row.Body, true
}

// Put stores body under key, resetting its age
func (c *Cache) Put(key string, body []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO musicbrainz_cache (cache_key, body, cached_at, hit_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(cache_key) DO UPDATE SET body = excluded.body, cached_at = excluded.cached_at
	`, key, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// GetStats returns cache statistics
func (c *Cache) GetStats() (entries int, totalHits int64, err error) {
	err = c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM musicbrainz_cache`).Scan(&entries, &totalHits)
	return
}

// ClearCache removes all cached entries
func (c *Cache) ClearCache() error {
	_, err := c.db.Exec("DELETE FROM musicbrainz_cache")
	return err
}

// ClearOldEntries removes cache entries older than the specified duration
func (c *Cache) ClearOldEntries(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var rows []struct {
		Key      string    `db:"cache_key"`
		CachedAt time.Time `db:"cached_at"`
	}
	if err := c.db.Select(&rows, `SELECT cache_key, cached_at FROM musicbrainz_cache`); err != nil {
		return 0, err
	}

	removed := 0
	for _, r := range rows {
		if r.CachedAt.Before(cutoff) {
			if _, err := c.db.Exec(`DELETE FROM musicbrainz_cache WHERE cache_key = ?`, r.Key); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
