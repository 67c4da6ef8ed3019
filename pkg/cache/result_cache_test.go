package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, capacity int) *ResultCache {
	t.Helper()
	c, err := NewResultCache(capacity, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestGetOrCompute_CachesResult(t *testing.T) {
	c := newTestCache(t, 8)
	var calls atomic.Int32
	compute := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "payload", nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), "fp", compute)
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.False(t, hit)

	var lastHits int64
	for i := 0; i < 5; i++ {
		got, hit, err = c.GetOrCompute(context.Background(), "fp", compute)
		require.NoError(t, err)
		assert.Equal(t, "payload", got)
		assert.True(t, hit)

		hits := c.Stats().Hits
		assert.Greater(t, hits, lastHits, "hit count must increase with every repeated request")
		lastHits = hits
	}

	assert.Equal(t, int32(1), calls.Load())
	stats := c.Stats()
	assert.Equal(t, int64(5), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Len)
}

func TestGetOrCompute_CoalescesConcurrentCallers(t *testing.T) {
	c := newTestCache(t, 8)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	const callers = 10
	results := make([]string, callers)
	hits := make([]bool, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], hits[0], _ = c.GetOrCompute(context.Background(), "fp", compute)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], hits[i], _ = c.GetOrCompute(context.Background(), "fp", compute)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "only one back-end call per fingerprint")
	for i, r := range results {
		assert.Equal(t, "shared", r, "caller %d", i)
	}
	assert.False(t, hits[0])
	for i := 1; i < callers; i++ {
		assert.True(t, hits[i], "caller %d should not have triggered a computation", i)
	}
	assert.Equal(t, int64(callers-1), c.Stats().Hits)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c := newTestCache(t, 8)
	boom := errors.New("backend down")
	var calls int

	compute := func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "fp", compute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	got, hit, err := c.GetOrCompute(context.Background(), "fp", compute)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestResultCache_LRUEviction(t *testing.T) {
	c := newTestCache(t, 2)

	c.Put("a", "1")
	c.Put("b", "2")
	_, ok := c.Get("a") // a is now most recently used
	require.True(t, ok)
	c.Put("c", "3")

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestResultCache_InFlightSurvivesEvictionPressure(t *testing.T) {
	c := newTestCache(t, 1)
	started := make(chan struct{})
	release := make(chan struct{})

	var got string
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		got, _, err = c.GetOrCompute(context.Background(), "slow", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "slow-result", nil
		})
	}()
	<-started

	// churn the single slot while "slow" is being computed
	c.Put("x", "1")
	c.Put("y", "2")
	c.Put("z", "3")
	close(release)
	<-done

	require.NoError(t, err)
	assert.Equal(t, "slow-result", got)
	e, ok := c.Get("slow")
	require.True(t, ok)
	assert.Equal(t, "slow-result", e.Payload)
}

func TestResultCache_InvalidateAll(t *testing.T) {
	c := newTestCache(t, 8)
	c.Put("a", "1")
	c.Put("b", "2")

	c.InvalidateAll()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestResultCache_InvalidateDuringFlightDoesNotStore(t *testing.T) {
	c := newTestCache(t, 8)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	var got string
	go func() {
		defer close(done)
		got, _, _ = c.GetOrCompute(context.Background(), "fp", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()
	<-started
	c.InvalidateAll()
	close(release)
	<-done

	assert.Equal(t, "stale", got, "the caller still receives its result")
	assert.Equal(t, 0, c.Len(), "a result computed before invalidation must not be stored")
}

func TestGetOrCompute_WaiterHonoursContext(t *testing.T) {
	c := newTestCache(t, 8)
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _, _ = c.GetOrCompute(context.Background(), "fp", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "late", nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.GetOrCompute(ctx, "fp", func(ctx context.Context) (string, error) {
		t.Error("waiter must not start a second computation")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewResultCache_DefaultCapacity(t *testing.T) {
	c, err := NewResultCache(0, nil)
	require.NoError(t, err)
	for i := 0; i < DefaultCapacity+1; i++ {
		c.Put("key-"+strconv.Itoa(i), "v")
	}
	assert.Equal(t, DefaultCapacity, c.Len())
}
