package cache

import (
	"sync/atomic"

	"github.com/stratacache/stratacache/pkg/types"
)

// telemetry aggregates operation counters. Counters are atomics so hot paths
// can bump them without holding the engine lock.
type telemetry struct {
	fastHits atomic.Uint64
	slowHits atomic.Uint64
	misses   atomic.Uint64

	evictionsFast   atomic.Uint64
	evictionsSlow   atomic.Uint64
	expirationsFast atomic.Uint64
	expirationsSlow atomic.Uint64

	promotions atomic.Uint64
	demotions  atomic.Uint64

	prefetchIssued   atomic.Uint64
	prefetchHits     atomic.Uint64
	prefetchWasted   atomic.Uint64
	prefetchFailures atomic.Uint64

	corruptRecords atomic.Uint64
}

// tierOccupancy carries the live size figures snapshot needs; the caller
// reads them under the engine lock.
type tierOccupancy struct {
	entries       int64
	bytes         int64
	capacityBytes int64
	capacityCount int64
}

func (t *telemetry) recordEviction(tier types.Tier) {
	if tier == types.TierSlow {
		t.evictionsSlow.Add(1)
		return
	}
	t.evictionsFast.Add(1)
}

func (t *telemetry) recordExpiration(tier types.Tier) {
	if tier == types.TierSlow {
		t.expirationsSlow.Add(1)
		return
	}
	t.expirationsFast.Add(1)
}

// snapshot renders the counters plus current occupancy into the public stats
// shape. Rates guard against zero denominators.
func (t *telemetry) snapshot(fast, slow tierOccupancy) types.GlobalStats {
	fastHits := t.fastHits.Load()
	slowHits := t.slowHits.Load()
	misses := t.misses.Load()

	stats := types.GlobalStats{
		Hits:             fastHits + slowHits,
		Misses:           misses,
		Evictions:        t.evictionsFast.Load() + t.evictionsSlow.Load(),
		Promotions:       t.promotions.Load(),
		Demotions:        t.demotions.Load(),
		Expirations:      t.expirationsFast.Load() + t.expirationsSlow.Load(),
		PrefetchesIssued: t.prefetchIssued.Load(),
		PrefetchHits:     t.prefetchHits.Load(),
		PrefetchWasted:   t.prefetchWasted.Load(),
		PrefetchFailures: t.prefetchFailures.Load(),
		CorruptRecords:   t.corruptRecords.Load(),
		Fast: types.TierStats{
			Hits:        fastHits,
			Misses:      slowHits + misses,
			Evictions:   t.evictionsFast.Load(),
			Expirations: t.expirationsFast.Load(),
			Entries:     fast.entries,
			SizeBytes:   fast.bytes,
		},
		Slow: types.TierStats{
			Hits:        slowHits,
			Misses:      misses,
			Evictions:   t.evictionsSlow.Load(),
			Expirations: t.expirationsSlow.Load(),
			Entries:     slow.entries,
			SizeBytes:   slow.bytes,
		},
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if fast.capacityBytes > 0 {
		stats.Fast.Utilization = float64(fast.bytes) / float64(fast.capacityBytes)
	}
	if slow.capacityCount > 0 {
		stats.Slow.Utilization = float64(slow.entries) / float64(slow.capacityCount)
	}
	return stats
}

func (t *telemetry) reset() {
	t.fastHits.Store(0)
	t.slowHits.Store(0)
	t.misses.Store(0)
	t.evictionsFast.Store(0)
	t.evictionsSlow.Store(0)
	t.expirationsFast.Store(0)
	t.expirationsSlow.Store(0)
	t.promotions.Store(0)
	t.demotions.Store(0)
	t.prefetchIssued.Store(0)
	t.prefetchHits.Store(0)
	t.prefetchWasted.Store(0)
	t.prefetchFailures.Store(0)
	t.corruptRecords.Store(0)
}
