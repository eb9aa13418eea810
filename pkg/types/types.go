package types

import (
	"errors"
	"time"
)

// Tier identifies one of the two storage pools an entry can live in.
type Tier string

const (
	// TierFast is the memory-resident pool, accounted in bytes.
	TierFast Tier = "fast"
	// TierSlow is the larger, optionally persisted pool, accounted in entries.
	TierSlow Tier = "slow"
)

// ErrNotFound is returned by Backend implementations when a key has no record.
var ErrNotFound = errors.New("record not found")

// AccessEvent is one observed lookup, recorded by the analyzer.
type AccessEvent struct {
	Key       string            `json:"key"`
	Timestamp time.Time         `json:"timestamp"`
	Context   map[string]string `json:"context,omitempty"`
}

// Prediction is the analyzer's answer for a trigger key. CandidateKeys is
// ordered most likely first and Confidences is parallel to it; each value is
// the fraction of observed transitions from the trigger to that candidate,
// so the returned confidences sum to at most 1.
type Prediction struct {
	CandidateKeys []string  `json:"candidate_keys"`
	Confidences   []float64 `json:"confidences"`
}

// Empty reports whether the prediction carries no candidates.
func (p Prediction) Empty() bool {
	return len(p.CandidateKeys) == 0
}

// KeyCount is one row of a global access-frequency ranking.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// PatternReport classifies the recent access stream. All three flags are
// false when fewer than the minimum number of events have been observed.
type PatternReport struct {
	Sequential bool `json:"sequential"` // short key sequences repeat
	Temporal   bool `json:"temporal"`   // accesses cluster in one hour of day
	Periodic   bool `json:"periodic"`   // inter-access gaps are regular
	Events     int  `json:"events"`     // events the report was computed from
}

// TierStats holds per-tier counters and occupancy.
type TierStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	Entries     int64   `json:"entries"`
	SizeBytes   int64   `json:"size_bytes"`
	Utilization float64 `json:"utilization"`
}

// GlobalStats is the facade-level telemetry snapshot. HitRate is
// hits / (hits + misses) and 0 when no requests have been observed.
type GlobalStats struct {
	Hits             uint64  `json:"hits"`
	Misses           uint64  `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	Evictions        uint64  `json:"evictions"`
	Promotions       uint64  `json:"promotions"`
	Demotions        uint64  `json:"demotions"`
	Expirations      uint64  `json:"expirations"`
	PrefetchesIssued uint64  `json:"prefetches_issued"`
	PrefetchHits     uint64  `json:"prefetch_hits"`
	PrefetchWasted   uint64  `json:"prefetch_wasted"`
	PrefetchFailures uint64  `json:"prefetch_failures"`
	CorruptRecords   uint64  `json:"corrupt_records"`

	Fast TierStats `json:"fast"`
	Slow TierStats `json:"slow"`
}

// Requests returns the total number of lookups the stats cover.
func (s GlobalStats) Requests() uint64 {
	return s.Hits + s.Misses
}
