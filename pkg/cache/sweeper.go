package cache

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/stratacache/stratacache/pkg/types"
)

// runSweeper drives periodic maintenance: expiring entries, trimming the
// access log, and flushing the slow tier index. The ticker comes from the
// injected clock so tests can step time.
func (c *Cache[V]) runSweeper(ctx context.Context) {
	defer c.wg.Done()
	ticker := c.clk.Ticker(c.cfg.Sweep.Interval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cache[V]) sweep(ctx context.Context) {
	now := c.clk.Now()

	var expiredSlow []*Entry[V]
	c.mu.Lock()
	for key, e := range c.fast.entries {
		if !e.expired(now) {
			continue
		}
		c.fast.remove(key)
		c.tel.recordExpiration(types.TierFast)
		c.wasteIfUnconsumed(e)
	}
	for key, e := range c.slow.entries {
		if !e.expired(now) {
			continue
		}
		c.slow.remove(key)
		c.tel.recordExpiration(types.TierSlow)
		c.wasteIfUnconsumed(e)
		c.indexDirty = true
		expiredSlow = append(expiredSlow, e)
	}
	c.mu.Unlock()

	c.deleteRecords(ctx, expiredSlow)

	if retention := c.cfg.Analyzer.Retention.Std(); retention > 0 {
		if removed := c.analyzer.cleanup(now.Add(-retention)); removed > 0 {
			c.logger.Debug("trimmed access log", zap.Int("events", removed))
		}
	}

	c.flushIndex(ctx)
}

// deleteRecords removes backend records for entries that left the slow tier.
// Best effort: the entries are already gone from memory.
func (c *Cache[V]) deleteRecords(ctx context.Context, entries []*Entry[V]) {
	if c.backend == nil || len(entries) == 0 {
		return
	}
	for _, e := range entries {
		if err := c.backend.Delete(ctx, e.Key); err != nil && !errors.Is(err, types.ErrNotFound) {
			c.logger.Warn("backend delete failed",
				zap.String("key", e.Key),
				zap.Error(err))
		}
	}
}

// flushIndex persists the slow tier index if it changed since the last
// flush. Failures re-mark the index dirty so the next sweep retries.
func (c *Cache[V]) flushIndex(ctx context.Context) {
	if c.backend == nil {
		return
	}
	c.mu.Lock()
	if !c.indexDirty {
		c.mu.Unlock()
		return
	}
	entries := make([]indexEntry, 0, c.slow.len())
	for _, e := range c.slow.entries {
		entries = append(entries, indexEntry{
			Key:          e.Key,
			CreatedAt:    e.CreatedAt.UnixMilli(),
			LastAccessAt: e.LastAccessAt.UnixMilli(),
			TTLMillis:    e.TTL.Milliseconds(),
			AccessCount:  e.AccessCount,
			SlowHits:     e.slowHits,
			SizeBytes:    e.SizeBytes,
		})
	}
	c.indexDirty = false
	c.mu.Unlock()

	data, err := encodeIndex(entries, c.clk.Now().UnixMilli())
	if err != nil {
		c.logger.Error("encode slow tier index failed", zap.Error(err))
		return
	}
	if err := c.backend.Write(ctx, c.cfg.Persistence.IndexKey, data); err != nil {
		c.logger.Warn("persist slow tier index failed", zap.Error(err))
		c.mu.Lock()
		c.indexDirty = true
		c.mu.Unlock()
	}
}

// loadIndex rebuilds slow tier metadata from a persisted index, skipping
// entries that have already expired. Missing or unreadable indexes are not
// errors; the cache simply starts cold.
func (c *Cache[V]) loadIndex(ctx context.Context) {
	if c.backend == nil {
		return
	}
	data, err := c.backend.Read(ctx, c.cfg.Persistence.IndexKey)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			c.logger.Warn("read slow tier index failed", zap.Error(err))
		}
		return
	}
	snap, err := decodeIndex(data)
	if err != nil {
		c.logger.Warn("slow tier index unusable, starting cold", zap.Error(err))
		return
	}

	now := c.clk.Now()
	restored := 0
	c.mu.Lock()
	for _, ie := range snap.Entries {
		if ie.Key == "" || ie.Key == c.cfg.Persistence.IndexKey {
			continue
		}
		e := &Entry[V]{
			Key:          ie.Key,
			CreatedAt:    unixMilli(ie.CreatedAt),
			LastAccessAt: unixMilli(ie.LastAccessAt),
			TTL:          durationMillis(ie.TTLMillis),
			AccessCount:  ie.AccessCount,
			SizeBytes:    ie.SizeBytes,
			Tier:         types.TierSlow,
			slowHits:     ie.SlowHits,
		}
		if e.expired(now) {
			continue
		}
		if c.slow.overCountWith(1) {
			break
		}
		c.slow.put(e)
		restored++
	}
	c.mu.Unlock()

	if restored > 0 {
		c.logger.Info("restored slow tier from index", zap.Int("entries", restored))
	}
}
