package cache

import (
	"fmt"
	"testing"
	"time"
)

func recordSequence(a *analyzer, base time.Time, gap time.Duration, keys ...string) {
	for i, key := range keys {
		a.record(key, base.Add(time.Duration(i)*gap))
	}
}

// TestAnalyzer_PredictFollowsSequence tests that a strict repeating sequence
// yields the follower with full confidence.
func TestAnalyzer_PredictFollowsSequence(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recordSequence(a, base, time.Second, "a", "b", "c", "a", "b", "c", "a")

	pred := a.predict("a", 3)
	if len(pred.CandidateKeys) != 1 || pred.CandidateKeys[0] != "b" {
		t.Fatalf("expected single candidate b, got %v", pred.CandidateKeys)
	}
	if pred.Confidences[0] != 1.0 {
		t.Errorf("expected confidence 1.0, got %g", pred.Confidences[0])
	}
}

// TestAnalyzer_PredictRanksBySupport tests ordering and confidence shares
// when a key has several followers.
func TestAnalyzer_PredictRanksBySupport(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	// a is followed by b twice and by c once.
	recordSequence(a, base, time.Second, "a", "b", "x", "a", "c", "x", "a", "b")

	pred := a.predict("a", 3)
	if len(pred.CandidateKeys) != 2 {
		t.Fatalf("expected 2 candidates, got %v", pred.CandidateKeys)
	}
	if pred.CandidateKeys[0] != "b" || pred.CandidateKeys[1] != "c" {
		t.Errorf("expected order [b c], got %v", pred.CandidateKeys)
	}
	if pred.Confidences[0] != 2.0/3.0 {
		t.Errorf("expected confidence 2/3 for b, got %g", pred.Confidences[0])
	}
	if pred.Confidences[1] != 1.0/3.0 {
		t.Errorf("expected confidence 1/3 for c, got %g", pred.Confidences[1])
	}
}

// TestAnalyzer_PredictSkipsRepeats tests that runs of the trigger key do not
// count as their own successor.
func TestAnalyzer_PredictSkipsRepeats(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recordSequence(a, base, time.Second, "a", "a", "a", "b")

	pred := a.predict("a", 3)
	if len(pred.CandidateKeys) != 1 || pred.CandidateKeys[0] != "b" {
		t.Fatalf("expected single candidate b, got %v", pred.CandidateKeys)
	}
	if pred.Confidences[0] != 1.0 {
		t.Errorf("expected confidence 1.0, got %g", pred.Confidences[0])
	}
}

// TestAnalyzer_PredictWindowBounded tests that followers beyond the
// lookahead window are not observed.
func TestAnalyzer_PredictWindowBounded(t *testing.T) {
	a := newAnalyzer(1000, 2, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	// The only occurrence of q is followed by two self-repeats inside the
	// window of 2; the distinct key arrives too late to be seen.
	recordSequence(a, base, time.Second, "q", "q", "q", "z")

	pred := a.predict("q", 3)
	// Occurrences at positions 1 and 2 still see z; position 0 does not.
	if len(pred.CandidateKeys) != 1 || pred.CandidateKeys[0] != "z" {
		t.Fatalf("expected candidate z, got %v", pred.CandidateKeys)
	}
	if pred.Confidences[0] != 1.0 {
		t.Errorf("expected confidence 1.0, got %g", pred.Confidences[0])
	}

	// A window large enough lets the first occurrence observe z as well;
	// confidence stays a share of observations, so it remains 1.0.
	wide := newAnalyzer(1000, 5, 100, 10)
	recordSequence(wide, base, time.Second, "q", "q", "q", "z")
	if got := wide.predict("q", 3); len(got.CandidateKeys) != 1 {
		t.Fatalf("expected one candidate with wide window, got %v", got.CandidateKeys)
	}
}

// TestAnalyzer_PredictEdgeCases tests unknown keys, empty logs, and
// non-positive candidate counts.
func TestAnalyzer_PredictEdgeCases(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	if pred := a.predict("missing", 3); !pred.Empty() {
		t.Errorf("expected empty prediction on empty log, got %v", pred.CandidateKeys)
	}

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recordSequence(a, base, time.Second, "a", "b")
	if pred := a.predict("zzz", 3); !pred.Empty() {
		t.Errorf("expected empty prediction for unseen key, got %v", pred.CandidateKeys)
	}
	if pred := a.predict("a", 0); !pred.Empty() {
		t.Errorf("expected empty prediction for k=0, got %v", pred.CandidateKeys)
	}
	// The last event has no successor at all.
	if pred := a.predict("b", 3); !pred.Empty() {
		t.Errorf("expected empty prediction for trailing key, got %v", pred.CandidateKeys)
	}
}

// TestAnalyzer_RecordBounded tests that the log drops its oldest events at
// capacity.
func TestAnalyzer_RecordBounded(t *testing.T) {
	a := newAnalyzer(5, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		a.record(fmt.Sprintf("k%d", i), base.Add(time.Duration(i)*time.Second))
	}

	if a.size() != 5 {
		t.Fatalf("expected log size 5, got %d", a.size())
	}
	top := a.topKeys(10)
	for _, kc := range top {
		if kc.Key == "k0" || kc.Key == "k1" || kc.Key == "k2" {
			t.Errorf("expected oldest events dropped, still see %s", kc.Key)
		}
	}
}

// TestAnalyzer_TopKeys tests frequency ranking with deterministic
// tie-breaking.
func TestAnalyzer_TopKeys(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recordSequence(a, base, time.Second, "b", "a", "b", "c", "a", "b")

	top := a.topKeys(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(top))
	}
	if top[0].Key != "b" || top[0].Count != 3 {
		t.Errorf("expected b:3 first, got %s:%d", top[0].Key, top[0].Count)
	}
	if top[1].Key != "a" || top[1].Count != 2 {
		t.Errorf("expected a:2 second, got %s:%d", top[1].Key, top[1].Count)
	}

	if got := a.topKeys(0); got != nil {
		t.Errorf("expected nil for k=0, got %v", got)
	}
}

// TestAnalyzer_DetectPatterns_TooFewEvents tests that a short history
// reports no patterns at all.
func TestAnalyzer_DetectPatterns_TooFewEvents(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recordSequence(a, base, time.Second, "a", "b", "c", "a", "b", "c", "a", "b", "c")

	report := a.detectPatterns()
	if report.Events != 9 {
		t.Fatalf("expected 9 events, got %d", report.Events)
	}
	if report.Sequential || report.Temporal || report.Periodic {
		t.Errorf("expected no patterns below the minimum, got %+v", report)
	}
}

// TestAnalyzer_DetectPatterns_Sequential tests that repeating key cycles
// are recognized while irregular timing keeps the other signals quiet.
func TestAnalyzer_DetectPatterns_Sequential(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	keys := []string{"a", "b", "c"}
	ts := base
	for i := 0; i < 30; i++ {
		a.record(keys[i%3], ts)
		// Alternate short and very long gaps: spreads events over many
		// hours and makes the spacing wildly irregular.
		if i%2 == 0 {
			ts = ts.Add(time.Minute)
		} else {
			ts = ts.Add(61 * time.Minute)
		}
	}

	report := a.detectPatterns()
	if !report.Sequential {
		t.Error("expected sequential pattern for repeating cycle")
	}
	if report.Temporal {
		t.Error("did not expect temporal clustering across spread-out hours")
	}
	if report.Periodic {
		t.Error("did not expect periodicity with alternating gaps")
	}
}

// TestAnalyzer_DetectPatterns_Temporal tests hour-of-day clustering with
// distinct keys and irregular spacing.
func TestAnalyzer_DetectPatterns_Temporal(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := base
	for i := 0; i < 20; i++ {
		a.record(fmt.Sprintf("k%d", i), ts)
		if i%2 == 0 {
			ts = ts.Add(time.Second)
		} else {
			ts = ts.Add(200 * time.Second)
		}
	}

	report := a.detectPatterns()
	if !report.Temporal {
		t.Error("expected temporal clustering inside a single hour")
	}
	if report.Sequential {
		t.Error("did not expect sequential pattern for distinct keys")
	}
	if report.Periodic {
		t.Error("did not expect periodicity with alternating gaps")
	}
}

// TestAnalyzer_DetectPatterns_Periodic tests regular spacing spread across
// hours with distinct keys.
func TestAnalyzer_DetectPatterns_Periodic(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		a.record(fmt.Sprintf("k%d", i), base.Add(time.Duration(i)*10*time.Minute))
	}

	report := a.detectPatterns()
	if !report.Periodic {
		t.Error("expected periodic pattern for uniform spacing")
	}
	if report.Sequential {
		t.Error("did not expect sequential pattern for distinct keys")
	}
	if report.Temporal {
		t.Error("did not expect temporal clustering across three hours")
	}
}

// TestAnalyzer_Cleanup tests retention trimming.
func TestAnalyzer_Cleanup(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recordSequence(a, base, time.Minute, "a", "b", "c", "d")

	removed := a.cleanup(base.Add(90 * time.Second))
	if removed != 2 {
		t.Fatalf("expected 2 events removed, got %d", removed)
	}
	if a.size() != 2 {
		t.Errorf("expected 2 events kept, got %d", a.size())
	}

	// Cutoff equal to a timestamp keeps that event.
	if removed := a.cleanup(base.Add(2 * time.Minute)); removed != 0 {
		t.Errorf("expected boundary event kept, removed %d", removed)
	}
}

// TestAnalyzer_Reset tests that reset drops the log but keeps recording.
func TestAnalyzer_Reset(t *testing.T) {
	a := newAnalyzer(1000, 5, 100, 10)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recordSequence(a, base, time.Second, "a", "b", "a")

	a.reset()
	if a.size() != 0 {
		t.Fatalf("expected empty log after reset, got %d", a.size())
	}
	a.record("x", base)
	if a.size() != 1 {
		t.Errorf("expected recording to continue after reset, got %d", a.size())
	}
}
