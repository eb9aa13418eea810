package cache

import "time"

// policy scores entries for eviction and decides tier moves. The score grows
// with idle time and entry size and shrinks with access count, so stale,
// rarely used, large entries leave first.
type policy[V any] struct {
	promoteAfter int
	unitBytes    int64
}

func newPolicy[V any](promoteAfter int, unitBytes int64) *policy[V] {
	if promoteAfter < 1 {
		promoteAfter = 1
	}
	if unitBytes < 1 {
		unitBytes = 1
	}
	return &policy[V]{promoteAfter: promoteAfter, unitBytes: unitBytes}
}

// score computes the eviction score. Higher = more likely to evict.
func (p *policy[V]) score(e *Entry[V], now time.Time) float64 {
	idle := now.Sub(e.LastAccessAt).Milliseconds()
	if idle < 0 {
		idle = 0
	}
	return float64(idle) / float64(e.AccessCount+1) * (float64(e.SizeBytes) / float64(p.unitBytes))
}

// worst returns the entry with the highest eviction score, skipping exclude.
// Ties fall to the older entry, then the smaller key, so selection is
// deterministic.
func (p *policy[V]) worst(store *tierStore[V], now time.Time, exclude string) *Entry[V] {
	var victim *Entry[V]
	var victimScore float64
	for key, e := range store.entries {
		if key == exclude {
			continue
		}
		s := p.score(e, now)
		switch {
		case victim == nil:
		case s > victimScore:
		case s == victimScore && e.LastAccessAt.Before(victim.LastAccessAt):
		case s == victimScore && e.LastAccessAt.Equal(victim.LastAccessAt) && key < victim.Key:
		default:
			continue
		}
		victim = e
		victimScore = s
	}
	return victim
}

func (p *policy[V]) shouldPromote(e *Entry[V]) bool {
	return e.slowHits >= p.promoteAfter
}

// evictionPlan lists the tier moves makeRoom decided on. Backend writes and
// deletes for these entries happen after the engine lock is released.
type evictionPlan[V any] struct {
	demoted     []*Entry[V]
	evictedFast []*Entry[V]
	evictedSlow []*Entry[V]
}

func (plan *evictionPlan[V]) empty() bool {
	return len(plan.demoted) == 0 && len(plan.evictedFast) == 0 && len(plan.evictedSlow) == 0
}

// makeRoom demotes the worst fast tier entries until the fast tier fits its
// byte budget, then evicts the worst slow tier entries until the slow tier
// fits its entry budget. The entry named by exclude is never selected, so an
// insert can never evict itself. With the slow tier disabled, demotion
// becomes eviction.
func (p *policy[V]) makeRoom(fast, slow *tierStore[V], now time.Time, exclude string, slowEnabled bool) evictionPlan[V] {
	var plan evictionPlan[V]

	for fast.overBytes() {
		victim := p.worst(fast, now, exclude)
		if victim == nil {
			break
		}
		fast.remove(victim.Key)
		if !slowEnabled {
			plan.evictedFast = append(plan.evictedFast, victim)
			continue
		}
		victim.slowHits = 0
		slow.put(victim)
		plan.demoted = append(plan.demoted, victim)
	}

	for slow.overCount() {
		victim := p.worst(slow, now, exclude)
		if victim == nil {
			break
		}
		slow.remove(victim.Key)
		plan.evictedSlow = append(plan.evictedSlow, victim)
	}

	return plan
}
