package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	s, err := New(dbPath, ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := s.Put(ctx, "fp-1", "### Transportation\nTrain."); err != nil {
		t.Fatal(err)
	}

	text, ok, err := s.Get(ctx, "fp-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if text != "### Transportation\nTrain." {
		t.Errorf("unexpected text: %q", text)
	}

	_, ok, err = s.Get(ctx, "fp-2")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected cache miss for unknown fingerprint")
	}
}

func TestPutReplaces(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	_ = s.Put(ctx, "fp", "old")
	_ = s.Put(ctx, "fp", "new")

	text, ok, _ := s.Get(ctx, "fp")
	if !ok || text != "new" {
		t.Errorf("expected replaced entry, got %q (hit=%v)", text, ok)
	}
}

func TestTTLExpiration(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	// Insert an entry that is already past its TTL.
	_, err := s.db.Exec(
		`INSERT INTO plan_cache (fingerprint, text, created_at, ttl_seconds) VALUES (?, ?, ?, ?)`,
		"stale", "data", time.Now().UTC().Add(-2*time.Hour), 60,
	)
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := s.Get(ctx, "stale")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected cache miss after TTL expiration")
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	_ = s.Put(ctx, "h1", "data")
	_, _, _ = s.Get(ctx, "h1") // hit
	_, _, _ = s.Get(ctx, "h2") // miss

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	_ = s.Put(ctx, "h1", "data")
	_ = s.Put(ctx, "h2", "data")

	if err := s.Clear(ctx, false); err != nil {
		t.Fatal(err)
	}

	stats, _ := s.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}
