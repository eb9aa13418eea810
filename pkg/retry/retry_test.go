package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetryer_FirstAttemptSuccess(t *testing.T) {
	retryer := New(DefaultConfig())

	attempts := 0
	err := retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_RetriesThenSucceeds(t *testing.T) {
	var retryAttempts []int
	var retryDelays []time.Duration

	config := Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			retryAttempts = append(retryAttempts, attempt)
			retryDelays = append(retryDelays, delay)
		},
	}
	retryer := New(config)

	attempts := 0
	err := retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(retryAttempts) != 2 || retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("Expected OnRetry after attempts [1 2], got %v", retryAttempts)
	}
	if len(retryDelays) != 2 || retryDelays[0] != time.Millisecond || retryDelays[1] != 2*time.Millisecond {
		t.Errorf("Expected doubling delays [1ms 2ms], got %v", retryDelays)
	}
}

func TestRetryer_ExhaustsAttempts(t *testing.T) {
	config := Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Jitter:       false,
	}
	retryer := New(config)

	sentinel := errors.New("upstream down")
	attempts := 0
	err := retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return sentinel
	})

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel error, got %v", err)
	}
	if !strings.Contains(err.Error(), "3 attempts exhausted") {
		t.Errorf("Expected exhaustion message, got %q", err.Error())
	}
}

func TestRetryer_ContextCancelledDuringBackoff(t *testing.T) {
	config := Config{
		MaxAttempts:  5,
		InitialDelay: time.Minute, // never actually waited out
		Jitter:       false,
	}
	retryer := New(config)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := retryer.Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("transient failure")
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRetryer_ContextErrorNotRetried(t *testing.T) {
	retryer := New(Config{MaxAttempts: 5, InitialDelay: time.Millisecond})

	attempts := 0
	err := retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return context.DeadlineExceeded
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if strings.Contains(err.Error(), "exhausted") {
		t.Errorf("Context errors must be returned as-is, got %q", err.Error())
	}
}

func TestRetryer_PreCancelledContext(t *testing.T) {
	retryer := New(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := retryer.Do(ctx, func(ctx context.Context) error {
		attempts++
		return nil
	})

	if attempts != 0 {
		t.Errorf("Expected 0 attempts with a dead context, got %d", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNew_FillsZeroValues(t *testing.T) {
	retryer := New(Config{})
	def := DefaultConfig()

	if retryer.config.MaxAttempts != def.MaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", retryer.config.MaxAttempts, def.MaxAttempts)
	}
	if retryer.config.InitialDelay != def.InitialDelay {
		t.Errorf("InitialDelay = %v, want %v", retryer.config.InitialDelay, def.InitialDelay)
	}
	if retryer.config.MaxDelay != def.MaxDelay {
		t.Errorf("MaxDelay = %v, want %v", retryer.config.MaxDelay, def.MaxDelay)
	}
	if retryer.config.Multiplier != def.Multiplier {
		t.Errorf("Multiplier = %v, want %v", retryer.config.Multiplier, def.Multiplier)
	}
}

func TestRetryer_DelayCapped(t *testing.T) {
	retryer := New(Config{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   10,
		Jitter:       false,
	})

	if d := retryer.delay(1); d != 10*time.Millisecond {
		t.Errorf("delay(1) = %v, want 10ms", d)
	}
	if d := retryer.delay(2); d != 20*time.Millisecond {
		t.Errorf("delay(2) = %v, want the 20ms cap", d)
	}
	if d := retryer.delay(4); d != 20*time.Millisecond {
		t.Errorf("delay(4) = %v, want the 20ms cap", d)
	}
}

func TestRetryer_JitterStaysWithinBounds(t *testing.T) {
	retryer := New(Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		d := retryer.delay(1)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("delay(1) = %v, want within ±20%% of 100ms", d)
		}
	}
}
