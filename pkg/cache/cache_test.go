package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/wanderplan/pkg/models"
)

type counter struct {
	calls  atomic.Int64
	result models.CompletionResult
}

func (c *counter) compute(context.Context) models.CompletionResult {
	c.calls.Add(1)
	return c.result
}

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	cleared bool
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Put(_ context.Context, key, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = text
	return nil
}

func (s *memStore) Stats(context.Context) (models.CacheStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CacheStats{Entries: int64(len(s.data))}, nil
}

func (s *memStore) Clear(context.Context, bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string]string{}
	s.cleared = true
	return nil
}

func TestSuccessIsCached(t *testing.T) {
	c := New(time.Hour, 10)
	ctr := &counter{result: models.Success("plan")}
	ctx := context.Background()

	r1, hit1 := c.GetOrCompute(ctx, "k", ctr.compute)
	r2, hit2 := c.GetOrCompute(ctx, "k", ctr.compute)

	assert.False(t, hit1)
	assert.True(t, hit2)
	assert.Equal(t, r1, r2)
	assert.Equal(t, "plan", r2.Text)
	assert.EqualValues(t, 1, ctr.calls.Load())

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestFailureAndEmptyAreNotCached(t *testing.T) {
	for _, res := range []models.CompletionResult{
		models.Failure(models.ErrorNetwork, "timeout"),
		models.Empty(),
	} {
		c := New(time.Hour, 10)
		ctr := &counter{result: res}
		ctx := context.Background()

		got, hit := c.GetOrCompute(ctx, "k", ctr.compute)
		assert.False(t, hit)
		assert.Equal(t, res.Status, got.Status)

		_, hit = c.GetOrCompute(ctx, "k", ctr.compute)
		assert.False(t, hit)
		assert.EqualValues(t, 2, ctr.calls.Load(), "status %s must be recomputed", res.Status)
	}
}

func TestRetryAfterFailureComputesFresh(t *testing.T) {
	c := New(time.Hour, 10)
	ctx := context.Background()

	_, _ = c.GetOrCompute(ctx, "k", func(context.Context) models.CompletionResult {
		return models.Failure(models.ErrorNetwork, "down")
	})
	r, hit := c.GetOrCompute(ctx, "k", func(context.Context) models.CompletionResult {
		return models.Success("recovered")
	})
	assert.False(t, hit)
	assert.Equal(t, "recovered", r.Text)
}

func TestConcurrentIdenticalKeysComputeOnce(t *testing.T) {
	c := New(time.Hour, 10)
	release := make(chan struct{})
	var calls atomic.Int64
	compute := func(context.Context) models.CompletionResult {
		calls.Add(1)
		<-release
		return models.Success("shared")
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]models.CompletionResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrCompute(context.Background(), "k", compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r.Text)
	}
}

func TestWaiterCancellationDoesNotCancelComputation(t *testing.T) {
	c := New(time.Hour, 10)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	compute := func(ctx context.Context) models.CompletionResult {
		calls.Add(1)
		close(started)
		<-release
		if ctx.Err() != nil {
			return models.Failure(models.ErrorCanceled, ctx.Err().Error())
		}
		return models.Success("done")
	}

	leaderDone := make(chan models.CompletionResult, 1)
	go func() {
		r, _ := c.GetOrCompute(context.Background(), "k", compute)
		leaderDone <- r
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan models.CompletionResult, 1)
	go func() {
		r, _ := c.GetOrCompute(ctx, "k", compute)
		waiterDone <- r
	}()
	cancel()

	waiter := <-waiterDone
	assert.True(t, waiter.IsFailure())
	assert.Equal(t, models.ErrorCanceled, waiter.Kind)

	close(release)
	leader := <-leaderDone
	assert.Equal(t, "done", leader.Text)
	assert.EqualValues(t, 1, calls.Load())

	r, hit := c.GetOrCompute(context.Background(), "k", compute)
	assert.True(t, hit)
	assert.Equal(t, "done", r.Text)
}

func TestLeaderCancellationStillCaches(t *testing.T) {
	c := New(time.Hour, 10)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	r, _ := c.GetOrCompute(ctx, "k", func(context.Context) models.CompletionResult {
		<-release
		defer close(finished)
		return models.Success("late")
	})
	assert.Equal(t, models.ErrorCanceled, r.Kind)

	close(release)
	<-finished
	require.Eventually(t, func() bool {
		_, ok := c.lookup("k")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestMaxEntriesEvictsSoonestExpiry(t *testing.T) {
	c := New(time.Hour, 2)
	ctx := context.Background()
	ok := func(text string) ComputeFunc {
		return func(context.Context) models.CompletionResult { return models.Success(text) }
	}

	_, _ = c.GetOrCompute(ctx, "a", ok("a"))
	time.Sleep(2 * time.Millisecond)
	_, _ = c.GetOrCompute(ctx, "b", ok("b"))
	time.Sleep(2 * time.Millisecond)
	_, _ = c.GetOrCompute(ctx, "c", ok("c"))

	_, hasA := c.lookup("a")
	_, hasB := c.lookup("b")
	_, hasC := c.lookup("c")
	assert.False(t, hasA)
	assert.True(t, hasB)
	assert.True(t, hasC)
	assert.Equal(t, 2, c.mem.ItemCount())
}

func TestTTLExpiry(t *testing.T) {
	c := New(20*time.Millisecond, 10)
	ctr := &counter{result: models.Success("plan")}
	ctx := context.Background()

	_, _ = c.GetOrCompute(ctx, "k", ctr.compute)
	time.Sleep(40 * time.Millisecond)
	_, hit := c.GetOrCompute(ctx, "k", ctr.compute)

	assert.False(t, hit)
	assert.EqualValues(t, 2, ctr.calls.Load())
}

func TestStoreTier(t *testing.T) {
	store := newMemStore()
	store.data["k"] = "persisted"
	c := New(time.Hour, 10, WithStore(store))
	ctr := &counter{result: models.Success("fresh")}
	ctx := context.Background()

	r, hit := c.GetOrCompute(ctx, "k", ctr.compute)
	assert.True(t, hit)
	assert.Equal(t, "persisted", r.Text)
	assert.Zero(t, ctr.calls.Load())

	_, _ = c.GetOrCompute(ctx, "other", ctr.compute)
	assert.Equal(t, "fresh", store.data["other"])

	require.NoError(t, c.Clear(ctx))
	assert.True(t, store.cleared)
	assert.Zero(t, c.mem.ItemCount())
}

func TestStoreErrorFallsThroughToCompute(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("store offline")
	c := New(time.Hour, 10, WithStore(store))
	ctr := &counter{result: models.Success("fresh")}

	r, hit := c.GetOrCompute(context.Background(), "k", ctr.compute)
	assert.False(t, hit)
	assert.Equal(t, "fresh", r.Text)
	assert.EqualValues(t, 1, ctr.calls.Load())
}

func TestNilCacheComputes(t *testing.T) {
	var c *ResultCache
	ctr := &counter{result: models.Success("plan")}

	_, hit := c.GetOrCompute(context.Background(), "k", ctr.compute)
	_, _ = c.GetOrCompute(context.Background(), "k", ctr.compute)

	assert.False(t, hit)
	assert.EqualValues(t, 2, ctr.calls.Load())
	require.NoError(t, c.Clear(context.Background()))
}
