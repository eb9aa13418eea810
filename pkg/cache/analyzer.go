package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/stratacache/stratacache/pkg/types"
)

// analyzer keeps a bounded log of key accesses and derives predictions and
// pattern reports from it. It has its own lock so recording stays cheap and
// never contends with tier bookkeeping.
type analyzer struct {
	mu sync.Mutex

	events    []types.AccessEvent
	maxEvents int
	window    int

	patternWindow    int
	minPatternEvents int
}

func newAnalyzer(maxEvents, window, patternWindow, minPatternEvents int) *analyzer {
	return &analyzer{
		events:           make([]types.AccessEvent, 0, maxEvents),
		maxEvents:        maxEvents,
		window:           window,
		patternWindow:    patternWindow,
		minPatternEvents: minPatternEvents,
	}
}

// record appends one access to the log, discarding the oldest event once the
// log is full.
func (a *analyzer) record(key string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.events) >= a.maxEvents {
		a.events = a.events[1:]
	}
	a.events = append(a.events, types.AccessEvent{Key: key, Timestamp: now})
}

// predict returns up to k keys historically accessed right after key. For
// every occurrence of key in the log, the first following event with a
// different key inside the lookahead window counts as one observation; the
// confidence of a candidate is its share of all observations.
func (a *analyzer) predict(key string, k int) types.Prediction {
	a.mu.Lock()
	defer a.mu.Unlock()

	if k <= 0 {
		return types.Prediction{}
	}

	successors := make(map[string]int)
	total := 0
	for i, ev := range a.events {
		if ev.Key != key {
			continue
		}
		limit := i + a.window
		if limit >= len(a.events) {
			limit = len(a.events) - 1
		}
		for j := i + 1; j <= limit; j++ {
			next := a.events[j].Key
			if next == key {
				continue
			}
			successors[next]++
			total++
			break
		}
	}
	if total == 0 {
		return types.Prediction{}
	}

	type ranked struct {
		key   string
		count int
	}
	order := make([]ranked, 0, len(successors))
	for s, c := range successors {
		order = append(order, ranked{key: s, count: c})
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].key < order[j].key
	})
	if len(order) > k {
		order = order[:k]
	}

	pred := types.Prediction{
		CandidateKeys: make([]string, 0, len(order)),
		Confidences:   make([]float64, 0, len(order)),
	}
	for _, r := range order {
		pred.CandidateKeys = append(pred.CandidateKeys, r.key)
		pred.Confidences = append(pred.Confidences, float64(r.count)/float64(total))
	}
	return pred
}

// topKeys returns the k most frequently accessed keys in the log.
func (a *analyzer) topKeys(k int) []types.KeyCount {
	a.mu.Lock()
	defer a.mu.Unlock()

	if k <= 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, ev := range a.events {
		counts[ev.Key]++
	}
	out := make([]types.KeyCount, 0, len(counts))
	for key, c := range counts {
		out = append(out, types.KeyCount{Key: key, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// detectPatterns inspects the most recent slice of the log for repeated
// subsequences, hour-of-day clustering, and regular spacing. Too few events
// and every signal reports false.
func (a *analyzer) detectPatterns() types.PatternReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	window := a.events
	if len(window) > a.patternWindow {
		window = window[len(window)-a.patternWindow:]
	}
	report := types.PatternReport{Events: len(window)}
	if len(window) < a.minPatternEvents {
		return report
	}

	report.Sequential = sequentialPattern(window)
	report.Temporal = temporalPattern(window)
	report.Periodic = periodicPattern(window)
	return report
}

// sequentialPattern checks whether consecutive key triples repeat often. A
// workload replaying the same short sequences produces far fewer distinct
// triples than a random one.
func sequentialPattern(window []types.AccessEvent) bool {
	if len(window) < 3 {
		return false
	}
	grams := make(map[[3]string]struct{})
	for i := 0; i+2 < len(window); i++ {
		grams[[3]string{window[i].Key, window[i+1].Key, window[i+2].Key}] = struct{}{}
	}
	return len(grams) < len(window)/2
}

// temporalPattern checks whether accesses concentrate in one hour of day.
func temporalPattern(window []types.AccessEvent) bool {
	buckets := make(map[int]int)
	busiest := 0
	for _, ev := range window {
		h := ev.Timestamp.Hour()
		buckets[h]++
		if buckets[h] > busiest {
			busiest = buckets[h]
		}
	}
	return float64(busiest) > 0.3*float64(len(window))
}

// periodicPattern checks whether gaps between consecutive accesses are
// regular: low variance relative to the mean gap.
func periodicPattern(window []types.AccessEvent) bool {
	if len(window) < 3 {
		return false
	}
	gaps := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		gaps = append(gaps, float64(window[i].Timestamp.Sub(window[i-1].Timestamp).Milliseconds()))
	}
	var mean float64
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if mean <= 0 {
		return false
	}
	var variance float64
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	variance /= float64(len(gaps))
	return variance < mean/2
}

// cleanup discards events older than cutoff.
func (a *analyzer) cleanup(cutoff time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.events[:0]
	for _, ev := range a.events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	removed := len(a.events) - len(kept)
	a.events = kept
	return removed
}

// reset drops the whole log.
func (a *analyzer) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = a.events[:0]
}

func (a *analyzer) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}
