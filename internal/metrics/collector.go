// Package metrics exports cache statistics to Prometheus. The collector
// renders a stats snapshot at scrape time, so the cache keeps a single set
// of counters and the exporter stays stateless.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stratacache/stratacache/pkg/types"
)

// Source supplies the statistics snapshot rendered at scrape time.
type Source func() types.GlobalStats

// Config configures the scrape endpoint.
type Config struct {
	Namespace string
	Port      int
	Path      string
}

// Collector implements prometheus.Collector over a stats source and serves
// the scrape endpoint.
type Collector struct {
	config   Config
	source   Source
	registry *prometheus.Registry
	server   *http.Server
	logger   *zap.Logger

	hits           *prometheus.Desc
	misses         *prometheus.Desc
	hitRate        *prometheus.Desc
	evictions      *prometheus.Desc
	expirations    *prometheus.Desc
	promotions     *prometheus.Desc
	demotions      *prometheus.Desc
	prefetch       *prometheus.Desc
	corruptRecords *prometheus.Desc
	entries        *prometheus.Desc
	sizeBytes      *prometheus.Desc
	utilization    *prometheus.Desc

	getDuration prometheus.Histogram
}

// NewCollector builds the collector and its private registry.
func NewCollector(config Config, source Source, logger *zap.Logger) *Collector {
	ns := config.Namespace
	if ns == "" {
		ns = "stratacache"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		config: config,
		source: source,
		logger: logger.With(zap.String("component", "metrics")),

		hits: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "hits_total"),
			"Cache hits by tier", []string{"tier"}, nil),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "misses_total"),
			"Cache misses", nil, nil),
		hitRate: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "hit_rate"),
			"Fraction of requests served from cache", nil, nil),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "evictions_total"),
			"Entries evicted by tier", []string{"tier"}, nil),
		expirations: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "expirations_total"),
			"Entries expired by tier", []string{"tier"}, nil),
		promotions: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "promotions_total"),
			"Entries promoted from the slow to the fast tier", nil, nil),
		demotions: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "demotions_total"),
			"Entries demoted from the fast to the slow tier", nil, nil),
		prefetch: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "prefetch_total"),
			"Prefetch operations by outcome", []string{"outcome"}, nil),
		corruptRecords: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "corrupt_records_total"),
			"Backend records dropped after failing validation", nil, nil),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "entries"),
			"Live entries by tier", []string{"tier"}, nil),
		sizeBytes: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "size_bytes"),
			"Stored bytes by tier", []string{"tier"}, nil),
		utilization: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "utilization"),
			"Capacity utilization by tier", []string{"tier"}, nil),
	}

	c.getDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "get_duration_seconds",
		Help:      "Latency of Get operations in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12), // 1µs to ~4s
	})

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(c, c.getDuration)
	return c
}

// ObserveGetDuration records one Get operation's latency.
func (c *Collector) ObserveGetDuration(d time.Duration) {
	c.getDuration.Observe(d.Seconds())
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.hitRate
	ch <- c.evictions
	ch <- c.expirations
	ch <- c.promotions
	ch <- c.demotions
	ch <- c.prefetch
	ch <- c.corruptRecords
	ch <- c.entries
	ch <- c.sizeBytes
	ch <- c.utilization
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source()

	counter := prometheus.CounterValue
	gauge := prometheus.GaugeValue

	ch <- prometheus.MustNewConstMetric(c.hits, counter, float64(stats.Fast.Hits), "fast")
	ch <- prometheus.MustNewConstMetric(c.hits, counter, float64(stats.Slow.Hits), "slow")
	ch <- prometheus.MustNewConstMetric(c.misses, counter, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.hitRate, gauge, stats.HitRate)
	ch <- prometheus.MustNewConstMetric(c.evictions, counter, float64(stats.Fast.Evictions), "fast")
	ch <- prometheus.MustNewConstMetric(c.evictions, counter, float64(stats.Slow.Evictions), "slow")
	ch <- prometheus.MustNewConstMetric(c.expirations, counter, float64(stats.Fast.Expirations), "fast")
	ch <- prometheus.MustNewConstMetric(c.expirations, counter, float64(stats.Slow.Expirations), "slow")
	ch <- prometheus.MustNewConstMetric(c.promotions, counter, float64(stats.Promotions))
	ch <- prometheus.MustNewConstMetric(c.demotions, counter, float64(stats.Demotions))
	ch <- prometheus.MustNewConstMetric(c.prefetch, counter, float64(stats.PrefetchesIssued), "issued")
	ch <- prometheus.MustNewConstMetric(c.prefetch, counter, float64(stats.PrefetchHits), "hit")
	ch <- prometheus.MustNewConstMetric(c.prefetch, counter, float64(stats.PrefetchWasted), "wasted")
	ch <- prometheus.MustNewConstMetric(c.prefetch, counter, float64(stats.PrefetchFailures), "failed")
	ch <- prometheus.MustNewConstMetric(c.corruptRecords, counter, float64(stats.CorruptRecords))
	ch <- prometheus.MustNewConstMetric(c.entries, gauge, float64(stats.Fast.Entries), "fast")
	ch <- prometheus.MustNewConstMetric(c.entries, gauge, float64(stats.Slow.Entries), "slow")
	ch <- prometheus.MustNewConstMetric(c.sizeBytes, gauge, float64(stats.Fast.SizeBytes), "fast")
	ch <- prometheus.MustNewConstMetric(c.sizeBytes, gauge, float64(stats.Slow.SizeBytes), "slow")
	ch <- prometheus.MustNewConstMetric(c.utilization, gauge, stats.Fast.Utilization, "fast")
	ch <- prometheus.MustNewConstMetric(c.utilization, gauge, stats.Slow.Utilization, "slow")
}

// Start serves the scrape endpoint in the background.
func (c *Collector) Start() error {
	path := c.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	c.logger.Info("metrics endpoint ready",
		zap.Int("port", c.config.Port),
		zap.String("path", path))
	return nil
}

// Stop shuts the scrape endpoint down.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// Handler returns the scrape handler for embedding into an existing server.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (c *Collector) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}
