package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/stratacache/stratacache/pkg/retry"
)

// Fetcher loads a value from the system of record. Prefetching calls it in
// the background; Warm and Prefetch call it with the caller's context. It
// must be safe for concurrent use.
type Fetcher[V any] func(ctx context.Context, key string) (V, error)

// prefetcher runs miss-triggered and bulk prefetching. Fetches execute on
// worker goroutines, never under the engine lock, so a hung fetcher can slow
// prefetching but not the cache itself.
type prefetcher[V any] struct {
	fetch   Fetcher[V]
	present func(key string) bool
	store   func(key string, value V)

	queue   chan string
	limiter *rate.Limiter
	retrier *retry.Retryer
	workers int

	mu       sync.Mutex
	inFlight map[string]struct{}

	tel    *telemetry
	logger *zap.Logger
	wg     sync.WaitGroup
}

func newPrefetcher[V any](cfg PrefetchConfig, fetch Fetcher[V], present func(string) bool, store func(string, V), tel *telemetry, logger *zap.Logger) *prefetcher[V] {
	limit := rate.Inf
	burst := 0
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &prefetcher[V]{
		fetch:    fetch,
		present:  present,
		store:    store,
		queue:    make(chan string, cfg.QueueSize),
		limiter:  rate.NewLimiter(limit, burst),
		retrier: retry.New(retry.Config{
			MaxAttempts:  cfg.FetchAttempts,
			InitialDelay: cfg.RetryBaseDelay.Std(),
		}),
		workers:  cfg.Workers,
		inFlight: make(map[string]struct{}),
		tel:      tel,
		logger:   logger,
	}
}

// start launches the fetch workers on ctx; they exit when ctx is cancelled.
func (p *prefetcher[V]) start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

func (p *prefetcher[V]) wait() {
	p.wg.Wait()
}

// schedule queues background fetches for candidate keys. Keys already cached,
// already in flight, or overflowing the queue are skipped; a full queue drops
// work rather than blocking a caller's miss path.
func (p *prefetcher[V]) schedule(keys []string) {
	if p.fetch == nil {
		return
	}
	for _, key := range keys {
		if p.present(key) {
			continue
		}
		if !p.mark(key) {
			continue
		}
		select {
		case p.queue <- key:
			p.tel.prefetchIssued.Add(1)
		default:
			p.unmark(key)
			p.logger.Debug("prefetch queue full, dropping candidate", zap.String("key", key))
		}
	}
}

// bulk fetches and stores the given keys with bounded concurrency, honoring
// the caller's context. A nil fetch falls back to the configured fetcher.
// Individual fetch failures are counted and skipped; only context
// cancellation aborts the batch. Returns the number of values stored.
func (p *prefetcher[V]) bulk(ctx context.Context, keys []string, fetch Fetcher[V]) (int, error) {
	if fetch == nil {
		fetch = p.fetch
	}
	if fetch == nil {
		return 0, ErrNoFetcher
	}

	var stored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, key := range keys {
		if p.present(key) {
			continue
		}
		if !p.mark(key) {
			continue
		}
		p.tel.prefetchIssued.Add(1)
		g.Go(func() error {
			defer p.unmark(key)
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			value, err := p.fetchOnce(gctx, key, fetch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			p.store(key, value)
			stored.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(stored.Load()), err
}

func (p *prefetcher[V]) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-p.queue:
			p.process(ctx, key)
		}
	}
}

func (p *prefetcher[V]) process(ctx context.Context, key string) {
	defer p.unmark(key)

	// The key may have arrived through Set while this job sat in the queue.
	if p.present(key) {
		return
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	value, err := p.fetchOnce(ctx, key, p.fetch)
	if err != nil {
		return
	}
	p.store(key, value)
}

// fetchOnce runs a fetcher with retries. Failures are counted and logged
// but never surfaced past the prefetcher.
func (p *prefetcher[V]) fetchOnce(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	var value V
	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		var ferr error
		value, ferr = fetch(ctx, key)
		return ferr
	})
	if err != nil {
		p.tel.prefetchFailures.Add(1)
		p.logger.Debug("prefetch fetch failed",
			zap.String("key", key),
			zap.Error(err))
	}
	return value, err
}

// mark reserves a key for fetching; false means another fetch is in flight.
func (p *prefetcher[V]) mark(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[key]; ok {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *prefetcher[V]) unmark(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}

// resetInFlight forgets every reservation, used when the cache is cleared.
// Fetches already running finish normally and re-populate on their own.
func (p *prefetcher[V]) resetInFlight() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = make(map[string]struct{})
}
