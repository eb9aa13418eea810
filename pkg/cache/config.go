package cache

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config controls every tunable of a cache instance. Zero it out and call
// DefaultConfig for sane starting values; YAML files and environment
// variables layer on top.
type Config struct {
	DefaultTTL  Duration          `yaml:"default_ttl"` // Applied when Set is called without a TTL
	Fast        FastTierConfig    `yaml:"fast"`
	Slow        SlowTierConfig    `yaml:"slow"`
	Analyzer    AnalyzerConfig    `yaml:"analyzer"`
	Policy      PolicyConfig      `yaml:"policy"`
	Prefetch    PrefetchConfig    `yaml:"prefetch"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// FastTierConfig bounds the in-memory tier by total value bytes.
type FastTierConfig struct {
	Capacity ByteSize `yaml:"capacity"` // Total byte budget, e.g. "64MB"
}

// SlowTierConfig bounds the second tier by entry count.
type SlowTierConfig struct {
	Enabled         bool  `yaml:"enabled"`
	CapacityEntries int64 `yaml:"capacity_entries"`
}

// AnalyzerConfig shapes the access log and pattern detection.
type AnalyzerConfig struct {
	MaxEvents        int      `yaml:"max_events"`         // Bounded access log length
	Window           int      `yaml:"window"`             // Lookahead for successor prediction
	PatternWindow    int      `yaml:"pattern_window"`     // Recent events inspected for patterns
	MinPatternEvents int      `yaml:"min_pattern_events"` // Below this, no pattern is reported
	Retention        Duration `yaml:"retention"`          // Events older than this are swept
}

// PolicyConfig shapes eviction scoring and promotion.
type PolicyConfig struct {
	PromoteAfter   int      `yaml:"promote_after"`    // Slow tier hits before promotion
	ScoreUnitBytes ByteSize `yaml:"score_unit_bytes"` // Size normalizer in the eviction score
}

// PrefetchConfig shapes miss-triggered and bulk prefetching.
type PrefetchConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Degree         int      `yaml:"degree"`           // Predictions requested per miss
	MinConfidence  float64  `yaml:"min_confidence"`   // Candidates below this are skipped
	Workers        int      `yaml:"workers"`          // Background fetch concurrency
	QueueSize      int      `yaml:"queue_size"`       // Pending job buffer; overflow is dropped
	RatePerSecond  float64  `yaml:"rate_per_second"`  // Fetch rate limit, 0 = unlimited
	FetchAttempts  int      `yaml:"fetch_attempts"`   // Tries per fetch before giving up
	RetryBaseDelay Duration `yaml:"retry_base_delay"` // First retry backoff
}

// SweepConfig shapes the background maintenance loop.
type SweepConfig struct {
	Interval Duration `yaml:"interval"`
}

// PersistenceConfig selects and configures the slow tier backend.
type PersistenceConfig struct {
	Backend  string `yaml:"backend"`   // "none", "filesystem", "redis", or "s3"
	IndexKey string `yaml:"index_key"` // Reserved backend key for the slow tier index

	Filesystem FilesystemBackendConfig `yaml:"filesystem"`
	Redis      RedisBackendConfig      `yaml:"redis"`
	S3         S3BackendConfig         `yaml:"s3"`
}

// FilesystemBackendConfig points the filesystem backend at a directory.
type FilesystemBackendConfig struct {
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"` // Gzip records on disk
}

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // Prepended to every record key
}

// S3BackendConfig configures the S3 backend. Endpoint and path style cover
// S3-compatible stores like MinIO.
type S3BackendConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	MaxRetries      int    `yaml:"max_retries"`
}

// MetricsConfig exposes Prometheus metrics over HTTP when enabled.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: Duration(time.Hour),
		Fast: FastTierConfig{
			Capacity: 64 * 1024 * 1024,
		},
		Slow: SlowTierConfig{
			Enabled:         true,
			CapacityEntries: 4096,
		},
		Analyzer: AnalyzerConfig{
			MaxEvents:        1000,
			Window:           5,
			PatternWindow:    100,
			MinPatternEvents: 10,
			Retention:        Duration(time.Hour),
		},
		Policy: PolicyConfig{
			PromoteAfter:   2,
			ScoreUnitBytes: 1024,
		},
		Prefetch: PrefetchConfig{
			Enabled:        true,
			Degree:         3,
			MinConfidence:  0.5,
			Workers:        4,
			QueueSize:      1000,
			RatePerSecond:  0,
			FetchAttempts:  2,
			RetryBaseDelay: Duration(100 * time.Millisecond),
		},
		Sweep: SweepConfig{
			Interval: Duration(time.Minute),
		},
		Persistence: PersistenceConfig{
			Backend:  BackendNone,
			IndexKey: "stratacache.index",
			Filesystem: FilesystemBackendConfig{
				Compress: true,
			},
			Redis: RedisBackendConfig{
				Addr:   "localhost:6379",
				Prefix: "stratacache:",
			},
			S3: S3BackendConfig{
				Region:     "us-east-1",
				Prefix:     "stratacache/",
				MaxRetries: 3,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "stratacache",
		},
	}
}

// Backend names accepted by PersistenceConfig.Backend.
const (
	BackendNone       = "none"
	BackendFilesystem = "filesystem"
	BackendRedis      = "redis"
	BackendS3         = "s3"
)

// LoadConfigFile reads a YAML config file over the defaults and validates
// the result.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays deployment settings from STRATACACHE_* environment
// variables. Only connection and credential fields are overridable; sizing
// stays in the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("STRATACACHE_BACKEND"); v != "" {
		c.Persistence.Backend = v
	}
	if v := os.Getenv("STRATACACHE_FS_DIR"); v != "" {
		c.Persistence.Filesystem.Dir = v
	}
	if v := os.Getenv("STRATACACHE_REDIS_ADDR"); v != "" {
		c.Persistence.Redis.Addr = v
	}
	if v := os.Getenv("STRATACACHE_REDIS_PASSWORD"); v != "" {
		c.Persistence.Redis.Password = v
	}
	if v := os.Getenv("STRATACACHE_S3_BUCKET"); v != "" {
		c.Persistence.S3.Bucket = v
	}
	if v := os.Getenv("STRATACACHE_S3_REGION"); v != "" {
		c.Persistence.S3.Region = v
	}
	if v := os.Getenv("STRATACACHE_S3_ENDPOINT"); v != "" {
		c.Persistence.S3.Endpoint = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" && c.Persistence.S3.AccessKeyID == "" {
		c.Persistence.S3.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" && c.Persistence.S3.SecretAccessKey == "" {
		c.Persistence.S3.SecretAccessKey = v
	}
	if v := os.Getenv("STRATACACHE_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Metrics.Port = port
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Fast.Capacity <= 0 {
		return fmt.Errorf("fast.capacity must be positive, got %d", int64(c.Fast.Capacity))
	}
	if c.Slow.Enabled && c.Slow.CapacityEntries <= 0 {
		return fmt.Errorf("slow.capacity_entries must be positive, got %d", c.Slow.CapacityEntries)
	}
	if c.Analyzer.MaxEvents < 1 {
		return fmt.Errorf("analyzer.max_events must be at least 1, got %d", c.Analyzer.MaxEvents)
	}
	if c.Analyzer.Window < 1 {
		return fmt.Errorf("analyzer.window must be at least 1, got %d", c.Analyzer.Window)
	}
	if c.Analyzer.PatternWindow < 1 {
		return fmt.Errorf("analyzer.pattern_window must be at least 1, got %d", c.Analyzer.PatternWindow)
	}
	if c.Policy.PromoteAfter < 1 {
		return fmt.Errorf("policy.promote_after must be at least 1, got %d", c.Policy.PromoteAfter)
	}
	if c.Policy.ScoreUnitBytes <= 0 {
		return fmt.Errorf("policy.score_unit_bytes must be positive, got %d", int64(c.Policy.ScoreUnitBytes))
	}
	if c.Prefetch.Enabled {
		if c.Prefetch.Degree < 1 {
			return fmt.Errorf("prefetch.degree must be at least 1, got %d", c.Prefetch.Degree)
		}
		if c.Prefetch.MinConfidence < 0 || c.Prefetch.MinConfidence > 1 {
			return fmt.Errorf("prefetch.min_confidence must be within [0, 1], got %g", c.Prefetch.MinConfidence)
		}
		if c.Prefetch.Workers < 1 {
			return fmt.Errorf("prefetch.workers must be at least 1, got %d", c.Prefetch.Workers)
		}
		if c.Prefetch.QueueSize < 1 {
			return fmt.Errorf("prefetch.queue_size must be at least 1, got %d", c.Prefetch.QueueSize)
		}
		if c.Prefetch.RatePerSecond < 0 {
			return fmt.Errorf("prefetch.rate_per_second must not be negative, got %g", c.Prefetch.RatePerSecond)
		}
		if c.Prefetch.FetchAttempts < 1 {
			return fmt.Errorf("prefetch.fetch_attempts must be at least 1, got %d", c.Prefetch.FetchAttempts)
		}
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive, got %s", time.Duration(c.Sweep.Interval))
	}
	switch c.Persistence.Backend {
	case BackendNone:
	case BackendFilesystem:
		if c.Persistence.Filesystem.Dir == "" {
			return fmt.Errorf("persistence.filesystem.dir is required for the filesystem backend")
		}
	case BackendRedis:
		if c.Persistence.Redis.Addr == "" {
			return fmt.Errorf("persistence.redis.addr is required for the redis backend")
		}
	case BackendS3:
		if c.Persistence.S3.Bucket == "" {
			return fmt.Errorf("persistence.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	if c.Persistence.Backend != BackendNone && c.Persistence.IndexKey == "" {
		return fmt.Errorf("persistence.index_key must not be empty")
	}
	if c.Persistence.Backend != BackendNone && !c.Slow.Enabled {
		return fmt.Errorf("persistence requires the slow tier to be enabled")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be within [1, 65535], got %d", c.Metrics.Port)
		}
		if c.Metrics.Path == "" {
			return fmt.Errorf("metrics.path must not be empty")
		}
	}
	return nil
}

// ByteSize is an int64 byte count that parses YAML values like "64MB",
// "1.5GiB", or plain integers.
type ByteSize int64

var byteUnits = []struct {
	suffix string
	factor float64
}{
	{"TIB", 1 << 40}, {"TB", 1e12},
	{"GIB", 1 << 30}, {"GB", 1e9},
	{"MIB", 1 << 20}, {"MB", 1e6},
	{"KIB", 1 << 10}, {"KB", 1e3},
	{"B", 1},
}

// ParseByteSize converts a human-readable size into bytes. Decimal suffixes
// (KB, MB) are powers of ten, binary suffixes (KiB, MiB) powers of two.
func ParseByteSize(s string) (ByteSize, error) {
	text := strings.ToUpper(strings.TrimSpace(s))
	if text == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	for _, unit := range byteUnits {
		if !strings.HasSuffix(text, unit.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(text, unit.suffix))
		if num == "" {
			return 0, fmt.Errorf("byte size %q has no numeric part", s)
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q", s)
		}
		return ByteSize(f * unit.factor), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	n := int64(b)
	switch {
	case n >= 1<<30 && n%(1<<30) == 0:
		return fmt.Sprintf("%dGiB", n/(1<<30))
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMiB", n/(1<<20))
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKiB", n/(1<<10))
	default:
		return strconv.FormatInt(n, 10)
	}
}

func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n int64
	if err := unmarshal(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// Duration is a time.Duration that parses YAML values like "90s" or "1h30m".
// Bare integers are taken as seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n int64
	if err := unmarshal(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
