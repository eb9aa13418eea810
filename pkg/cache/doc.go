/*
Package cache provides a two tier cache with access pattern analysis, scored
eviction, and predictive prefetching.

The cache watches how callers access keys, predicts what they will ask for
next, and fetches it before they do. Entries move between a fast in-memory
tier and a slow tier under a scoring policy, and the slow tier can persist
its values behind a pluggable backend so a restarted process starts warm.

# Architecture

	┌─────────────────────────────────────────────┐
	│              Application                    │
	│       Get / Set / Delete / Stats            │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│               Cache[V]                      │  ← This Package
	│  ┌───────────────┐   ┌──────────────────┐   │
	│  │   Fast Tier   │   │     Analyzer     │   │
	│  │  (byte bound) │   │  (access log,    │   │
	│  └───────┬───────┘   │   predictions)   │   │
	│          │ demote/   └────────┬─────────┘   │
	│          │ promote            │ candidates  │
	│  ┌───────┴───────┐   ┌────────┴─────────┐   │
	│  │   Slow Tier   │   │    Prefetcher    │   │
	│  │ (entry bound) │   │ (worker pool +   │   │
	│  └───────┬───────┘   │  rate limiter)   │   │
	│          │           └──────────────────┘   │
	└──────────┼──────────────────────────────────┘
	           │
	┌──────────┴──────────────────────────────────┐
	│           Persistence Backend               │
	│      (filesystem, Redis, S3, custom)        │
	└─────────────────────────────────────────────┘

# Tiers and Movement

Fast tier:
- In-memory values under a total byte budget
- Hits are served without any I/O
- Overflow demotes the worst scored entries to the slow tier

Slow tier:
- Bounded by entry count, not bytes
- With a backend configured, holds metadata only; values live in the backend
- Overflow evicts its own worst scored entries
- Repeated hits promote an entry back to the fast tier

The eviction score grows with idle time and entry size and shrinks with
access count, so stale, rarely used, large entries leave first. An entry
being inserted is never evicted by its own insertion.

# Prediction and Prefetching

Every Get is recorded in a bounded access log. From the log the analyzer
answers two questions: which keys tend to follow a given key, and which
broad patterns the workload exhibits (repeated sequences, hour-of-day
clustering, regular spacing).

On a miss, candidates predicted with enough confidence are fetched in the
background through the caller-supplied Fetcher and stored so the next Get
hits. Fetches run on a bounded worker pool behind an optional rate limit,
never under the cache lock, so a slow upstream cannot stall cache
operations. Prefetch, hit, waste, and failure counts are all reported in
Stats.

# Persistence

With a backend configured, demoted values are sealed into versioned,
checksummed records and written behind the slow tier. A record that fails
validation on the way back is removed and the lookup reported as a miss;
the caller never sees an error. The slow tier index is flushed on sweep and
on Close and reloaded on construction, so a restarted cache remembers what
the backend holds.

# Usage

Basic construction and operations:

	cfg := cache.DefaultConfig()
	cfg.Fast.Capacity = 128 * 1024 * 1024
	cfg.Slow.CapacityEntries = 10000

	c, err := cache.New[[]byte](ctx, cfg, cache.Options[[]byte]{
		Logger: logger,
		Sizer:  cache.BytesSizer,
		Fetcher: func(ctx context.Context, key string) ([]byte, error) {
			return origin.Load(ctx, key)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	c.Set(ctx, "users/42", profile)
	if v, ok := c.Get(ctx, "users/42"); ok {
		// served from cache
		_ = v
	}

Persistence behind the filesystem backend:

	cfg.Persistence.Backend = "filesystem"
	cfg.Persistence.Filesystem.Dir = "/var/cache/stratacache"

Warming and explicit prefetching:

	n, err := c.Prefetch(ctx, "reports/q1", "reports/q2", "reports/q3")
	warmed, err := c.Warm(ctx, 100, nil) // re-fetch the hottest keys

Introspection:

	stats := c.Stats()
	fmt.Printf("hit rate %.2f, evictions %d\n", stats.HitRate, stats.Evictions)

	next := c.PredictNext("users/42", 3)
	hot := c.TopKeys(10)
	patterns := c.Patterns()
*/
package cache
