package cache

import (
	"time"

	"github.com/stratacache/stratacache/pkg/types"
)

// Entry is one cached value together with the bookkeeping the eviction and
// tiering policy runs on. An entry lives in exactly one tier at a time.
type Entry[V any] struct {
	Key          string
	Value        V
	CreatedAt    time.Time
	LastAccessAt time.Time
	TTL          time.Duration
	AccessCount  int64
	SizeBytes    int64
	Tier         types.Tier

	// slowHits counts reads since the last demotion; promotion triggers
	// once it reaches the configured threshold.
	slowHits int

	// resident is false when the value lives only behind the persistence
	// backend and the in-memory entry is slow-tier metadata.
	resident bool

	// prefetched is set when the value arrived through prefetching and is
	// cleared on the first read, which counts as a prefetch hit. Removal
	// before that read counts as prefetch waste.
	prefetched bool
}

func newEntry[V any](key string, value V, size int64, ttl time.Duration, now time.Time) *Entry[V] {
	return &Entry[V]{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		LastAccessAt: now,
		TTL:          ttl,
		SizeBytes:    size,
		Tier:         types.TierFast,
		resident:     true,
	}
}

// expired reports whether the entry's TTL has elapsed. A TTL of zero or
// less means the entry never expires.
func (e *Entry[V]) expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL
}

// touch records a successful read.
func (e *Entry[V]) touch(now time.Time) {
	e.LastAccessAt = now
	e.AccessCount++
}

// dropValue releases the payload while keeping the metadata, used when the
// value is persisted behind a backend.
func (e *Entry[V]) dropValue() {
	var zero V
	e.Value = zero
	e.resident = false
}
