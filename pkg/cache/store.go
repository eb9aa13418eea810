package cache

import (
	"github.com/stratacache/stratacache/pkg/types"
)

// tierStore is the per-tier key→entry map with capacity accounting. It is a
// pure data structure: it enforces no policy and performs no locking, the
// owning cache serializes access and applies eviction decisions itself.
type tierStore[V any] struct {
	tier       types.Tier
	entries    map[string]*Entry[V]
	totalBytes int64

	// capacityBytes bounds the fast tier, capacityCount the slow tier;
	// the unused one is zero.
	capacityBytes int64
	capacityCount int
}

func newTierStore[V any](tier types.Tier) *tierStore[V] {
	return &tierStore[V]{
		tier:    tier,
		entries: make(map[string]*Entry[V]),
	}
}

// get looks up an entry without mutating recency or frequency; recording an
// access is the caller's job.
func (s *tierStore[V]) get(key string) (*Entry[V], bool) {
	e, ok := s.entries[key]
	return e, ok
}

// put inserts or overwrites an entry and keeps the running byte total
// consistent. The entry's tier is stamped to the store's tier.
func (s *tierStore[V]) put(e *Entry[V]) {
	if old, ok := s.entries[e.Key]; ok {
		s.totalBytes -= old.SizeBytes
	}
	e.Tier = s.tier
	s.entries[e.Key] = e
	s.totalBytes += e.SizeBytes
}

// remove deletes and returns the entry, if present.
func (s *tierStore[V]) remove(key string) (*Entry[V], bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	s.totalBytes -= e.SizeBytes
	return e, true
}

// all returns the live entries in unspecified order, for score scans and
// sweeps.
func (s *tierStore[V]) all() []*Entry[V] {
	out := make([]*Entry[V], 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

func (s *tierStore[V]) len() int {
	return len(s.entries)
}

func (s *tierStore[V]) bytes() int64 {
	return s.totalBytes
}

func (s *tierStore[V]) clear() {
	s.entries = make(map[string]*Entry[V])
	s.totalBytes = 0
}

// overBytes reports whether the store exceeds its byte budget.
func (s *tierStore[V]) overBytes() bool {
	return s.capacityBytes > 0 && s.totalBytes > s.capacityBytes
}

// overCount reports whether the store exceeds its entry budget.
func (s *tierStore[V]) overCount() bool {
	return s.capacityCount > 0 && len(s.entries) > s.capacityCount
}

// overCountWith reports whether adding n more entries would exceed the
// entry budget.
func (s *tierStore[V]) overCountWith(n int) bool {
	return s.capacityCount > 0 && len(s.entries)+n > s.capacityCount
}
