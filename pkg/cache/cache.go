package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/stratacache/stratacache/internal/metrics"
	storagefs "github.com/stratacache/stratacache/internal/storage/fs"
	storageredis "github.com/stratacache/stratacache/internal/storage/redis"
	storages3 "github.com/stratacache/stratacache/internal/storage/s3"
	"github.com/stratacache/stratacache/pkg/types"
)

// ErrNoFetcher is returned by Prefetch when the cache was built without a
// fetcher.
var ErrNoFetcher = errors.New("no fetcher configured")

// Options carries the pluggable pieces of a cache. Every field is optional:
// zero values fall back to a nop logger, the system clock, JSON sizing and
// encoding, the backend named in the config, and no prefetching.
type Options[V any] struct {
	Logger  *zap.Logger
	Clock   clock.Clock
	Sizer   Sizer[V]
	Codec   Codec[V]
	Backend types.Backend
	Fetcher Fetcher[V]
}

// Cache is a two tier cache with access pattern analysis, scored eviction,
// predictive prefetching, and optional persistence behind the slow tier.
//
// The fast tier holds values in memory under a byte budget. The slow tier
// holds demoted entries under an entry budget; with a backend configured it
// keeps only metadata in memory and the values in the backend. All methods
// are safe for concurrent use.
type Cache[V any] struct {
	cfg    *Config
	logger *zap.Logger
	clk    clock.Clock

	mu         sync.RWMutex
	fast       *tierStore[V]
	slow       *tierStore[V]
	indexDirty bool

	sizer Sizer[V]
	codec Codec[V]

	analyzer *analyzer
	pol      *policy[V]
	tel      *telemetry

	backend     types.Backend
	ownsBackend bool
	readGroup   singleflight.Group

	pre       *prefetcher[V]
	collector *metrics.Collector

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a cache from cfg and opts and starts its background workers.
// A nil cfg means DefaultConfig. The workers stop when ctx is cancelled or
// Close is called.
func New[V any](ctx context.Context, cfg *Config, opts Options[V]) (*Cache[V], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "stratacache"))

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	sizer := opts.Sizer
	if sizer == nil {
		sizer = JSONSizer[V]()
	}
	var codec Codec[V] = JSONCodec[V]{}
	if opts.Codec != nil {
		codec = opts.Codec
	}

	backend := opts.Backend
	ownsBackend := false
	if backend == nil && cfg.Persistence.Backend != BackendNone {
		b, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open %s backend: %w", cfg.Persistence.Backend, err)
		}
		backend = b
		ownsBackend = true
	}

	fast := newTierStore[V](types.TierFast)
	fast.capacityBytes = int64(cfg.Fast.Capacity)
	slow := newTierStore[V](types.TierSlow)
	if cfg.Slow.Enabled {
		slow.capacityCount = int(cfg.Slow.CapacityEntries)
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Cache[V]{
		cfg:         cfg,
		logger:      logger,
		clk:         clk,
		fast:        fast,
		slow:        slow,
		sizer:       sizer,
		codec:       codec,
		analyzer:    newAnalyzer(cfg.Analyzer.MaxEvents, cfg.Analyzer.Window, cfg.Analyzer.PatternWindow, cfg.Analyzer.MinPatternEvents),
		pol:         newPolicy[V](cfg.Policy.PromoteAfter, int64(cfg.Policy.ScoreUnitBytes)),
		tel:         &telemetry{},
		backend:     backend,
		ownsBackend: ownsBackend,
		ctx:         cctx,
		cancel:      cancel,
	}

	if backend != nil {
		c.loadIndex(cctx)
	}

	c.pre = newPrefetcher(cfg.Prefetch, opts.Fetcher, c.has, c.storePrefetched, c.tel, logger)
	if cfg.Prefetch.Enabled && opts.Fetcher != nil {
		c.pre.start(cctx)
	}

	c.wg.Add(1)
	go c.runSweeper(cctx)

	if cfg.Metrics.Enabled {
		c.collector = metrics.NewCollector(metrics.Config{
			Namespace: cfg.Metrics.Namespace,
			Port:      cfg.Metrics.Port,
			Path:      cfg.Metrics.Path,
		}, c.Stats, logger)
		if err := c.collector.Start(); err != nil {
			cancel()
			c.wg.Wait()
			if ownsBackend {
				backend.Close()
			}
			return nil, fmt.Errorf("start metrics collector: %w", err)
		}
	}

	logger.Info("cache ready",
		zap.String("fast_capacity", cfg.Fast.Capacity.String()),
		zap.Bool("slow_enabled", cfg.Slow.Enabled),
		zap.Int64("slow_capacity_entries", cfg.Slow.CapacityEntries),
		zap.String("backend", cfg.Persistence.Backend),
		zap.Bool("prefetch", cfg.Prefetch.Enabled && opts.Fetcher != nil))
	return c, nil
}

// Get returns the cached value for key. Expired entries count as misses and
// are removed on the spot. A hit in the slow tier bumps its promotion
// counter; a miss feeds the prefetcher with predicted next keys.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	if c.collector != nil {
		defer func(start time.Time) {
			c.collector.ObserveGetDuration(time.Since(start))
		}(time.Now())
	}

	var zero V
	now := c.clk.Now()
	c.analyzer.record(key, now)

	c.mu.Lock()
	if e, ok := c.fast.get(key); ok {
		if !e.expired(now) {
			e.touch(now)
			c.hitIfPrefetched(e)
			c.tel.fastHits.Add(1)
			v := e.Value
			c.mu.Unlock()
			return v, true
		}
		c.fast.remove(key)
		c.tel.recordExpiration(types.TierFast)
		c.wasteIfUnconsumed(e)
	}

	var expiredSlow *Entry[V]
	if e, ok := c.slow.get(key); ok {
		switch {
		case e.expired(now):
			c.slow.remove(key)
			c.tel.recordExpiration(types.TierSlow)
			c.wasteIfUnconsumed(e)
			c.indexDirty = true
			expiredSlow = e
		case e.resident:
			e.touch(now)
			e.slowHits++
			c.hitIfPrefetched(e)
			c.tel.slowHits.Add(1)
			v := e.Value
			var plan evictionPlan[V]
			var promoted *Entry[V]
			if c.canPromote(e) {
				promoted = c.promoteLocked(e)
				plan = c.pol.makeRoom(c.fast, c.slow, now, key, c.cfg.Slow.Enabled)
				c.applyPlanLocked(plan)
			}
			c.mu.Unlock()
			if promoted != nil {
				c.deleteRecords(ctx, []*Entry[V]{promoted})
			}
			c.applyPlanIO(ctx, plan)
			return v, true
		default:
			// Value lives behind the backend; read it outside the lock.
			c.mu.Unlock()
			return c.getFromBackend(ctx, key)
		}
	}

	c.tel.misses.Add(1)
	c.mu.Unlock()
	if expiredSlow != nil {
		c.deleteRecords(ctx, []*Entry[V]{expiredSlow})
	}
	c.maybePrefetch(key)
	return zero, false
}

// Set stores value under key with the configured default TTL.
func (c *Cache[V]) Set(ctx context.Context, key string, value V) {
	c.put(ctx, key, value, c.cfg.DefaultTTL.Std(), false)
}

// SetWithTTL stores value under key with an explicit TTL. A TTL of zero or
// less means the entry never expires.
func (c *Cache[V]) SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration) {
	c.put(ctx, key, value, ttl, false)
}

// Delete removes key from both tiers and the backend. It reports whether an
// entry was present.
func (c *Cache[V]) Delete(ctx context.Context, key string) bool {
	c.mu.Lock()
	removed := false
	var fromSlow *Entry[V]
	if e, ok := c.fast.remove(key); ok {
		removed = true
		c.wasteIfUnconsumed(e)
	}
	if e, ok := c.slow.remove(key); ok {
		removed = true
		c.wasteIfUnconsumed(e)
		c.indexDirty = true
		fromSlow = e
	}
	c.mu.Unlock()

	if fromSlow != nil {
		c.deleteRecords(ctx, []*Entry[V]{fromSlow})
	}
	return removed
}

// Clear empties both tiers, the backend records, and the counters. The
// access log survives so predictions keep working across a clear.
func (c *Cache[V]) Clear(ctx context.Context) {
	c.mu.Lock()
	slowKeys := make([]string, 0, c.slow.len())
	for key := range c.slow.entries {
		slowKeys = append(slowKeys, key)
	}
	c.fast.clear()
	c.slow.clear()
	c.indexDirty = c.backend != nil
	c.tel.reset()
	c.mu.Unlock()
	c.pre.resetInFlight()

	if c.backend != nil {
		for _, key := range slowKeys {
			if err := c.backend.Delete(ctx, key); err != nil && !errors.Is(err, types.ErrNotFound) {
				c.logger.Warn("backend delete failed",
					zap.String("key", key),
					zap.Error(err))
			}
		}
		c.flushIndex(ctx)
	}
	c.logger.Info("cache cleared", zap.Int("slow_records", len(slowKeys)))
}

// Stats returns a consistent snapshot of counters and occupancy.
func (c *Cache[V]) Stats() types.GlobalStats {
	c.mu.RLock()
	fastOcc := tierOccupancy{
		entries:       int64(c.fast.len()),
		bytes:         c.fast.bytes(),
		capacityBytes: c.fast.capacityBytes,
	}
	slowOcc := tierOccupancy{
		entries:       int64(c.slow.len()),
		bytes:         c.slow.bytes(),
		capacityCount: int64(c.slow.capacityCount),
	}
	c.mu.RUnlock()
	return c.tel.snapshot(fastOcc, slowOcc)
}

// PredictNext returns up to k keys likely to be requested after key, with
// confidences, based on the recorded access history.
func (c *Cache[V]) PredictNext(key string, k int) types.Prediction {
	return c.analyzer.predict(key, k)
}

// TopKeys returns the k most frequently accessed keys on record.
func (c *Cache[V]) TopKeys(k int) []types.KeyCount {
	return c.analyzer.topKeys(k)
}

// Patterns reports which access patterns the recent history exhibits.
func (c *Cache[V]) Patterns() types.PatternReport {
	return c.analyzer.detectPatterns()
}

// ClearHistory drops the recorded access log. Cached entries are untouched.
func (c *Cache[V]) ClearHistory() {
	c.analyzer.reset()
}

// Prefetch fetches and stores the given keys that are not already cached,
// with bounded concurrency under the caller's context. It returns how many
// values were stored; individual fetch failures are counted in the stats
// and skipped.
func (c *Cache[V]) Prefetch(ctx context.Context, keys ...string) (int, error) {
	return c.pre.bulk(ctx, keys, nil)
}

// Warm prefetches the most frequently accessed keys on record that are no
// longer cached, up to limit. A nil fetcher means the configured one. It
// returns how many values were stored.
func (c *Cache[V]) Warm(ctx context.Context, limit int, fetcher Fetcher[V]) (int, error) {
	top := c.analyzer.topKeys(limit)
	if len(top) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(top))
	for _, kc := range top {
		keys = append(keys, kc.Key)
	}
	return c.pre.bulk(ctx, keys, fetcher)
}

// Resize changes the tier budgets and immediately applies the resulting
// eviction pressure.
func (c *Cache[V]) Resize(ctx context.Context, fastBytes, slowEntries int64) error {
	if fastBytes <= 0 {
		return fmt.Errorf("fast capacity must be positive, got %d", fastBytes)
	}
	if c.cfg.Slow.Enabled && slowEntries <= 0 {
		return fmt.Errorf("slow capacity must be positive, got %d", slowEntries)
	}

	now := c.clk.Now()
	c.mu.Lock()
	c.fast.capacityBytes = fastBytes
	if c.cfg.Slow.Enabled {
		c.slow.capacityCount = int(slowEntries)
	}
	plan := c.pol.makeRoom(c.fast, c.slow, now, "", c.cfg.Slow.Enabled)
	c.applyPlanLocked(plan)
	c.mu.Unlock()

	c.applyPlanIO(ctx, plan)
	c.logger.Info("cache resized",
		zap.Int64("fast_capacity_bytes", fastBytes),
		zap.Int64("slow_capacity_entries", slowEntries))
	return nil
}

// MetricsHandler returns the Prometheus scrape handler, or nil when metrics
// are disabled.
func (c *Cache[V]) MetricsHandler() http.Handler {
	if c.collector == nil {
		return nil
	}
	return c.collector.Handler()
}

// Close stops the background workers, flushes the slow tier index, and
// closes a backend the cache opened itself. It is idempotent.
func (c *Cache[V]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.pre.wait()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if c.collector != nil {
			if serr := c.collector.Stop(shutdownCtx); serr != nil {
				c.logger.Warn("stop metrics collector failed", zap.Error(serr))
			}
		}
		if c.backend != nil {
			c.mu.Lock()
			c.indexDirty = true
			c.mu.Unlock()
			c.flushIndex(shutdownCtx)
			if c.ownsBackend {
				err = c.backend.Close()
			}
		}
		c.logger.Info("cache closed")
	})
	return err
}

// Internal operations

// put inserts an entry into the fast tier and applies eviction pressure.
// Oversized values go straight to the slow tier. With prefetched set, an
// already cached key is left alone and put reports false.
func (c *Cache[V]) put(ctx context.Context, key string, value V, ttl time.Duration, prefetched bool) bool {
	now := c.clk.Now()
	size := c.sizer(value)
	if size < 1 {
		size = 1
	}

	var plan evictionPlan[V]
	var replacedSlow *Entry[V]
	var straightToSlow *Entry[V]

	c.mu.Lock()
	if prefetched && c.liveLocked(key, now) {
		c.mu.Unlock()
		return false
	}

	// An entry lives in exactly one tier; drop any slow copy before the
	// fast insert.
	if old, ok := c.slow.remove(key); ok {
		c.wasteIfUnconsumed(old)
		c.indexDirty = true
		replacedSlow = old
	}
	if old, ok := c.fast.get(key); ok {
		c.wasteIfUnconsumed(old)
	}

	e := newEntry(key, value, size, ttl, now)
	e.prefetched = prefetched

	switch {
	case size > c.fast.capacityBytes && c.cfg.Slow.Enabled:
		// Larger than the whole fast budget; it can only ever live in the
		// slow tier, so it goes there directly and counts as demoted.
		c.fast.remove(key)
		c.slow.put(e)
		c.tel.demotions.Add(1)
		c.indexDirty = true
		straightToSlow = e
		plan = c.pol.makeRoom(c.fast, c.slow, now, key, true)
	case size > c.fast.capacityBytes:
		c.fast.remove(key)
		c.mu.Unlock()
		c.logger.Warn("value exceeds fast tier capacity and slow tier is disabled, not cached",
			zap.String("key", key),
			zap.Int64("size_bytes", size))
		if replacedSlow != nil {
			c.deleteRecords(ctx, []*Entry[V]{replacedSlow})
		}
		return false
	default:
		c.fast.put(e)
		plan = c.pol.makeRoom(c.fast, c.slow, now, key, c.cfg.Slow.Enabled)
	}
	c.applyPlanLocked(plan)
	c.mu.Unlock()

	if replacedSlow != nil {
		c.deleteRecords(ctx, []*Entry[V]{replacedSlow})
	}
	if straightToSlow != nil {
		c.persistDemoted(ctx, []*Entry[V]{straightToSlow})
	}
	c.applyPlanIO(ctx, plan)
	return true
}

// getFromBackend finishes a Get whose entry is slow tier metadata. The
// backend read runs deduplicated and outside the lock; afterwards the tiers
// are probed again because they may have moved underneath.
func (c *Cache[V]) getFromBackend(ctx context.Context, key string) (V, bool) {
	var zero V

	ch := c.readGroup.DoChan(key, func() (interface{}, error) {
		return c.backend.Read(c.ctx, key)
	})

	var data []byte
	select {
	case <-ctx.Done():
		c.tel.misses.Add(1)
		return zero, false
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, types.ErrNotFound) {
				// The backend lost the record; drop the stale metadata.
				c.mu.Lock()
				if e, ok := c.slow.get(key); ok && !e.resident {
					c.slow.remove(key)
					c.wasteIfUnconsumed(e)
					c.indexDirty = true
				}
				c.tel.misses.Add(1)
				c.mu.Unlock()
				c.logger.Debug("backend record missing", zap.String("key", key))
			} else {
				c.tel.misses.Add(1)
				c.logger.Warn("backend read failed",
					zap.String("key", key),
					zap.Error(res.Err))
			}
			c.maybePrefetch(key)
			return zero, false
		}
		data = res.Val.([]byte)
	}

	value, _, err := openEntry(c.codec, key, data, c.logger)
	if err != nil {
		c.mu.Lock()
		if e, ok := c.slow.get(key); ok && !e.resident {
			c.slow.remove(key)
			c.wasteIfUnconsumed(e)
			c.indexDirty = true
		}
		c.tel.corruptRecords.Add(1)
		c.tel.misses.Add(1)
		c.mu.Unlock()
		if derr := c.backend.Delete(ctx, key); derr != nil && !errors.Is(derr, types.ErrNotFound) {
			c.logger.Warn("delete corrupt record failed",
				zap.String("key", key),
				zap.Error(derr))
		}
		c.maybePrefetch(key)
		return zero, false
	}

	now := c.clk.Now()
	var plan evictionPlan[V]
	var promoted *Entry[V]

	c.mu.Lock()
	if e, ok := c.fast.get(key); ok && !e.expired(now) {
		// Promoted or rewritten while we were reading; serve the fast copy.
		e.touch(now)
		c.hitIfPrefetched(e)
		c.tel.fastHits.Add(1)
		v := e.Value
		c.mu.Unlock()
		return v, true
	}
	e, ok := c.slow.get(key)
	if !ok {
		c.tel.slowHits.Add(1)
		c.mu.Unlock()
		return value, true
	}
	if e.expired(now) {
		c.slow.remove(key)
		c.tel.recordExpiration(types.TierSlow)
		c.wasteIfUnconsumed(e)
		c.indexDirty = true
		c.tel.misses.Add(1)
		c.mu.Unlock()
		c.deleteRecords(ctx, []*Entry[V]{e})
		return zero, false
	}
	e.touch(now)
	e.slowHits++
	c.hitIfPrefetched(e)
	c.tel.slowHits.Add(1)
	if c.canPromote(e) {
		e.Value = value
		e.resident = true
		promoted = c.promoteLocked(e)
		plan = c.pol.makeRoom(c.fast, c.slow, now, key, c.cfg.Slow.Enabled)
		c.applyPlanLocked(plan)
	}
	c.mu.Unlock()

	if promoted != nil {
		c.deleteRecords(ctx, []*Entry[V]{promoted})
	}
	c.applyPlanIO(ctx, plan)
	return value, true
}

// canPromote reports whether e has earned promotion and can actually fit
// the fast tier. An entry larger than the whole fast budget stays slow no
// matter how often it is read.
func (c *Cache[V]) canPromote(e *Entry[V]) bool {
	return c.pol.shouldPromote(e) && e.SizeBytes <= c.fast.capacityBytes
}

// promoteLocked moves a slow tier entry into the fast tier. Caller holds the
// write lock and has already attached the value.
func (c *Cache[V]) promoteLocked(e *Entry[V]) *Entry[V] {
	c.slow.remove(e.Key)
	e.slowHits = 0
	c.fast.put(e)
	c.tel.promotions.Add(1)
	c.indexDirty = true
	return e
}

// maybePrefetch asks the analyzer for likely next keys after a miss and
// queues background fetches for the confident ones.
func (c *Cache[V]) maybePrefetch(key string) {
	if !c.cfg.Prefetch.Enabled {
		return
	}
	pred := c.analyzer.predict(key, c.cfg.Prefetch.Degree)
	if pred.Empty() {
		return
	}
	candidates := make([]string, 0, len(pred.CandidateKeys))
	for i, candidate := range pred.CandidateKeys {
		if pred.Confidences[i] >= c.cfg.Prefetch.MinConfidence {
			candidates = append(candidates, candidate)
		}
	}
	if len(candidates) > 0 {
		c.pre.schedule(candidates)
	}
}

// has reports whether a live entry for key exists in either tier.
func (c *Cache[V]) has(key string) bool {
	now := c.clk.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liveLocked(key, now)
}

func (c *Cache[V]) liveLocked(key string, now time.Time) bool {
	if e, ok := c.fast.get(key); ok && !e.expired(now) {
		return true
	}
	if e, ok := c.slow.get(key); ok && !e.expired(now) {
		return true
	}
	return false
}

// storePrefetched inserts a background fetch result under the default TTL.
func (c *Cache[V]) storePrefetched(key string, value V) {
	c.put(c.ctx, key, value, c.cfg.DefaultTTL.Std(), true)
}

// hitIfPrefetched counts the first read of a prefetched entry. Caller holds
// the write lock.
func (c *Cache[V]) hitIfPrefetched(e *Entry[V]) {
	if e.prefetched {
		e.prefetched = false
		c.tel.prefetchHits.Add(1)
	}
}

// wasteIfUnconsumed counts a prefetched entry that was removed before any
// read. Caller holds the write lock.
func (c *Cache[V]) wasteIfUnconsumed(e *Entry[V]) {
	if e.prefetched {
		e.prefetched = false
		c.tel.prefetchWasted.Add(1)
	}
}

// applyPlanLocked books the tier moves of an eviction plan. Caller holds the
// write lock.
func (c *Cache[V]) applyPlanLocked(plan evictionPlan[V]) {
	for range plan.demoted {
		c.tel.demotions.Add(1)
	}
	for _, e := range plan.evictedFast {
		c.tel.recordEviction(types.TierFast)
		c.wasteIfUnconsumed(e)
	}
	for _, e := range plan.evictedSlow {
		c.tel.recordEviction(types.TierSlow)
		c.wasteIfUnconsumed(e)
	}
	if len(plan.demoted) > 0 || len(plan.evictedSlow) > 0 {
		c.indexDirty = true
	}
}

// applyPlanIO performs the backend writes and deletes an eviction plan calls
// for, outside the lock.
func (c *Cache[V]) applyPlanIO(ctx context.Context, plan evictionPlan[V]) {
	if plan.empty() {
		return
	}
	c.persistDemoted(ctx, plan.demoted)
	c.deleteRecords(ctx, plan.evictedSlow)
}

// persistDemoted writes demoted entries to the backend and releases their
// in-memory values. Entries are sealed from a snapshot taken under the lock
// so concurrent touches cannot race the encoder. A failed write drops the
// entry: the slow tier must never claim a value the backend does not hold.
func (c *Cache[V]) persistDemoted(ctx context.Context, entries []*Entry[V]) {
	if c.backend == nil || len(entries) == 0 {
		return
	}
	for _, e := range entries {
		c.mu.RLock()
		cur, ok := c.slow.get(e.Key)
		if !ok || cur != e {
			c.mu.RUnlock()
			continue
		}
		snap := *e
		c.mu.RUnlock()

		data, err := sealEntry(c.codec, &snap)
		if err == nil {
			err = c.backend.Write(ctx, e.Key, data)
		}
		if err != nil {
			c.logger.Warn("persist demoted entry failed, dropping it",
				zap.String("key", e.Key),
				zap.Error(err))
			c.mu.Lock()
			if cur, ok := c.slow.get(e.Key); ok && cur == e {
				c.slow.remove(e.Key)
				c.tel.recordEviction(types.TierSlow)
				c.wasteIfUnconsumed(e)
				c.indexDirty = true
			}
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		if cur, ok := c.slow.get(e.Key); ok && cur == e {
			e.dropValue()
		}
		c.mu.Unlock()
	}
}

// openBackend builds the backend named in the config.
func openBackend(ctx context.Context, cfg *Config, logger *zap.Logger) (types.Backend, error) {
	switch cfg.Persistence.Backend {
	case BackendFilesystem:
		return storagefs.New(storagefs.Config{
			Dir:      cfg.Persistence.Filesystem.Dir,
			Compress: cfg.Persistence.Filesystem.Compress,
		}, logger)
	case BackendRedis:
		return storageredis.New(ctx, storageredis.Config{
			Addr:     cfg.Persistence.Redis.Addr,
			Password: cfg.Persistence.Redis.Password,
			DB:       cfg.Persistence.Redis.DB,
			Prefix:   cfg.Persistence.Redis.Prefix,
		}, logger)
	case BackendS3:
		return storages3.New(ctx, storages3.Config{
			Bucket:          cfg.Persistence.S3.Bucket,
			Region:          cfg.Persistence.S3.Region,
			Prefix:          cfg.Persistence.S3.Prefix,
			Endpoint:        cfg.Persistence.S3.Endpoint,
			UsePathStyle:    cfg.Persistence.S3.UsePathStyle,
			AccessKeyID:     cfg.Persistence.S3.AccessKeyID,
			SecretAccessKey: cfg.Persistence.S3.SecretAccessKey,
			MaxRetries:      cfg.Persistence.S3.MaxRetries,
		}, logger)
	}
	return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
}
