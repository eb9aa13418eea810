package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexDirty(c *Cache[string]) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexDirty
}

func TestSweep_ExpiresBothTiers(t *testing.T) {
	cfg := newTestConfig()
	cfg.Fast.Capacity = 1024
	bk := newMemBackend()
	mock := clock.NewMock()
	c := newTestCache(t, cfg, Options[string]{Clock: mock, Backend: bk})
	ctx := context.Background()

	c.SetWithTTL(ctx, "a", kilobyte(), time.Second)
	mock.Add(time.Millisecond)
	c.SetWithTTL(ctx, "b", kilobyte(), time.Second)
	require.Equal(t, "slow", tierOf(c, "a"))
	require.True(t, bk.has("a"))

	mock.Add(2 * time.Second)
	c.sweep(ctx)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Expirations)
	assert.Equal(t, uint64(1), stats.Fast.Expirations)
	assert.Equal(t, uint64(1), stats.Slow.Expirations)
	assert.Equal(t, int64(0), stats.Fast.Entries)
	assert.Equal(t, int64(0), stats.Slow.Entries)
	assert.False(t, bk.has("a"), "the expired record must be deleted from the backend")

	// The sweep also flushed an empty index.
	assert.False(t, indexDirty(c))
	data, ok := bk.get(cfg.Persistence.IndexKey)
	require.True(t, ok)
	snap, err := decodeIndex(data)
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
}

func TestSweep_ExpiresResidentSlowEntry(t *testing.T) {
	cfg := newTestConfig()
	cfg.Fast.Capacity = 1024
	mock := clock.NewMock()
	c := newTestCache(t, cfg, Options[string]{Clock: mock})
	ctx := context.Background()

	c.SetWithTTL(ctx, "a", kilobyte(), time.Second)
	mock.Add(time.Millisecond)
	c.SetWithTTL(ctx, "b", kilobyte(), time.Hour)
	require.Equal(t, "slow", tierOf(c, "a"))

	mock.Add(2 * time.Second)
	c.sweep(ctx)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Slow.Expirations)
	assert.Equal(t, int64(0), stats.Slow.Entries)
	assert.Equal(t, "fast", tierOf(c, "b"), "unexpired entries must survive the sweep")
}

func TestSweep_TrimsAccessLog(t *testing.T) {
	cfg := newTestConfig()
	cfg.Analyzer.Retention = Duration(time.Hour)
	mock := clock.NewMock()
	c := newTestCache(t, cfg, Options[string]{Clock: mock})
	ctx := context.Background()

	c.Get(ctx, "a")
	c.Get(ctx, "b")
	require.Equal(t, 2, c.analyzer.size())

	mock.Add(2 * time.Hour)
	c.sweep(ctx)

	assert.Equal(t, 0, c.analyzer.size(), "events past retention must be trimmed")
}

func TestSweep_KeepsRecentEvents(t *testing.T) {
	cfg := newTestConfig()
	cfg.Analyzer.Retention = Duration(time.Hour)
	mock := clock.NewMock()
	c := newTestCache(t, cfg, Options[string]{Clock: mock})
	ctx := context.Background()

	c.Get(ctx, "old")
	mock.Add(90 * time.Minute)
	c.Get(ctx, "fresh")

	c.sweep(ctx)

	require.Equal(t, 1, c.analyzer.size())
	top := c.TopKeys(5)
	require.Len(t, top, 1)
	assert.Equal(t, "fresh", top[0].Key)
}

func TestSweeper_RunsOnTicker(t *testing.T) {
	cfg := newTestConfig()
	cfg.Sweep.Interval = Duration(time.Minute)
	mock := clock.NewMock()
	c := newTestCache(t, cfg, Options[string]{Clock: mock})
	ctx := context.Background()

	c.SetWithTTL(ctx, "k", "v", 30*time.Second)

	// The sweeper registers its ticker asynchronously; keep stepping the
	// clock until a tick lands and the sweep runs.
	require.Eventually(t, func() bool {
		mock.Add(61 * time.Second)
		return c.Stats().Expirations >= 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(1), c.Stats().Expirations)
	assert.Equal(t, int64(0), c.Stats().Fast.Entries)
}

func TestFlushIndex_RetriesAfterFailure(t *testing.T) {
	cfg := newTestConfig()
	cfg.Fast.Capacity = 1024
	bk := newMemBackend()
	mock := clock.NewMock()
	c := newTestCache(t, cfg, Options[string]{Clock: mock, Backend: bk})
	ctx := context.Background()

	c.Set(ctx, "a", kilobyte())
	mock.Add(time.Millisecond)
	c.Set(ctx, "b", kilobyte())
	require.Equal(t, "slow", tierOf(c, "a"))
	require.True(t, indexDirty(c))

	bk.setFailWrite(errors.New("backend unavailable"))
	c.sweep(ctx)
	assert.True(t, indexDirty(c), "a failed flush must leave the index dirty for the next sweep")
	_, ok := bk.get(cfg.Persistence.IndexKey)
	assert.False(t, ok)

	bk.setFailWrite(nil)
	c.sweep(ctx)
	assert.False(t, indexDirty(c))

	data, ok := bk.get(cfg.Persistence.IndexKey)
	require.True(t, ok)
	snap, err := decodeIndex(data)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "a", snap.Entries[0].Key)
}

func TestFlushIndex_SkipsWhenClean(t *testing.T) {
	cfg := newTestConfig()
	cfg.Fast.Capacity = 1024
	bk := newMemBackend()
	mock := clock.NewMock()
	c := newTestCache(t, cfg, Options[string]{Clock: mock, Backend: bk})
	ctx := context.Background()

	c.Set(ctx, "a", kilobyte())
	mock.Add(time.Millisecond)
	c.Set(ctx, "b", kilobyte())

	c.sweep(ctx)
	writes := bk.writes

	// Nothing changed; another sweep must not rewrite the index.
	c.sweep(ctx)
	assert.Equal(t, writes, bk.writes)
}
