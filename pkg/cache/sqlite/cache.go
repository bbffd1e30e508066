package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/wanderplan/pkg/models"
)

// Store is a persistent plan cache tier backed by SQLite. Entries are keyed
// by CompletionRequest fingerprint and hold successful completion text only.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createPlanTable = `
CREATE TABLE IF NOT EXISTS plan_cache (
	fingerprint TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL
);
`

// New opens a Store at dbPath. Entries older than ttl are treated as absent.
func New(dbPath string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createPlanTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db, ttl: ttl}, nil
}

// Get retrieves a cached plan. A missing or expired entry is a miss, not an error.
func (s *Store) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	var text string
	var createdAt time.Time
	var ttlSeconds int64

	err := s.db.QueryRowContext(ctx,
		`SELECT text, created_at, ttl_seconds FROM plan_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&text, &createdAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return "", false, fmt.Errorf("cache get: %w", err)
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if time.Since(createdAt) > ttl {
		s.misses.Add(1)
		return "", false, nil
	}

	s.hits.Add(1)
	return text, true, nil
}

// Put stores a plan, replacing any previous entry for the fingerprint.
func (s *Store) Put(ctx context.Context, fingerprint, text string) error {
	ttl := int64(s.ttl / time.Second)
	if ttl < 1 && s.ttl > 0 {
		ttl = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO plan_cache (fingerprint, text, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?)`,
		fingerprint, text, time.Now().UTC(), ttl,
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns the entry count and this process's hit/miss counters.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM plan_cache WHERE (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`
	} else {
		query = `DELETE FROM plan_cache`
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
