package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jonwraymond/dbops/cache"
	"github.com/jonwraymond/dbops/observe"
	"github.com/jonwraymond/dbops/resilience"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrInvalidDriver indicates an unknown database driver.
	ErrInvalidDriver = errors.New("config: driver must be sqlite or postgres")

	// ErrMissingDSN indicates no database location was configured.
	ErrMissingDSN = errors.New("config: dsn is required")

	// ErrInvalidStrategy indicates an unknown backoff strategy name.
	ErrInvalidStrategy = errors.New("config: unknown backoff strategy")

	// ErrInvalidValue indicates a negative or out-of-range setting.
	ErrInvalidValue = errors.New("config: invalid value")
)

// EnvPrefix prefixes every environment variable read by the command.
const EnvPrefix = "DBOPS"

// EnvKeyReplacer maps nested keys to environment names, e.g. retry.delay to
// DBOPS_RETRY_DELAY.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Config is the full command configuration.
type Config struct {
	Driver      string         `mapstructure:"driver"`
	DSN         string         `mapstructure:"dsn"`
	Concurrency int            `mapstructure:"concurrency"`
	Timeout     time.Duration  `mapstructure:"timeout"` // per call, 0 = unbounded
	Retry       RetryConfig    `mapstructure:"retry"`
	Bulkhead    BulkheadConfig `mapstructure:"bulkhead"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Observe     observe.Config `mapstructure:"observe"`
}

// RetryConfig selects the retry layer. Attempts of zero disables it.
type RetryConfig struct {
	Attempts   int           `mapstructure:"attempts"`
	Delay      time.Duration `mapstructure:"delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Strategy   string        `mapstructure:"strategy"` // constant|exponential|fibonacci|linear
	Jitter     uint64        `mapstructure:"jitter"`   // percent
	MaxElapsed time.Duration `mapstructure:"max_elapsed"`
}

// BulkheadConfig selects the bulkhead layer. MaxConcurrent of zero disables
// it.
type BulkheadConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
}

// CacheConfig selects the result cache for read operations.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Size    int           `mapstructure:"size"` // 0 = unbounded
	TTL     time.Duration `mapstructure:"ttl"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Driver: DriverSQLite,
		DSN:    "dbops.db",
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    100 * time.Millisecond,
			Strategy: "exponential",
		},
		Cache: CacheConfig{Enabled: true},
		Observe: observe.Config{
			ServiceName: "dbops",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// SetDefaults registers Default() with v so unset keys decode to it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("driver", d.Driver)
	v.SetDefault("dsn", d.DSN)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.delay", d.Retry.Delay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.strategy", d.Retry.Strategy)
	v.SetDefault("retry.jitter", d.Retry.Jitter)
	v.SetDefault("retry.max_elapsed", d.Retry.MaxElapsed)
	v.SetDefault("bulkhead.max_concurrent", d.Bulkhead.MaxConcurrent)
	v.SetDefault("bulkhead.max_wait", d.Bulkhead.MaxWait)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("observe.service_name", d.Observe.ServiceName)
	v.SetDefault("observe.tracing.enabled", d.Observe.Tracing.Enabled)
	v.SetDefault("observe.tracing.exporter", d.Observe.Tracing.Exporter)
	v.SetDefault("observe.tracing.sample_pct", d.Observe.Tracing.SamplePct)
	v.SetDefault("observe.metrics.enabled", d.Observe.Metrics.Enabled)
	v.SetDefault("observe.metrics.exporter", d.Observe.Metrics.Exporter)
	v.SetDefault("observe.logging.enabled", d.Observe.Logging.Enabled)
	v.SetDefault("observe.logging.level", d.Observe.Logging.Level)
}

// Decode reads v into a Config, expands environment references in the DSN,
// and validates the result.
func Decode(v *viper.Viper) (Config, error) {
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	var c Config
	if err := v.Unmarshal(&c, viper.DecodeHook(hooks)); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	dsn, err := ExpandEnvStrict(c.DSN)
	if err != nil {
		return Config{}, fmt.Errorf("config: dsn %q: %w", redactDSN(c.DSN), err)
	}
	c.DSN = dsn

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	c.Driver = strings.ToLower(c.Driver)
	if !slices.Contains([]string{DriverSQLite, DriverPostgres}, c.Driver) {
		return fmt.Errorf("%w, got %q", ErrInvalidDriver, c.Driver)
	}
	if c.DSN == "" {
		return ErrMissingDSN
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency %d", ErrInvalidValue, c.Concurrency)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout %s", ErrInvalidValue, c.Timeout)
	}
	if c.Retry.Attempts < 0 || c.Retry.Delay < 0 || c.Retry.MaxDelay < 0 || c.Retry.MaxElapsed < 0 {
		return fmt.Errorf("%w: retry settings must not be negative", ErrInvalidValue)
	}
	if c.Retry.Jitter > 100 {
		return fmt.Errorf("%w: retry jitter %d%% above 100", ErrInvalidValue, c.Retry.Jitter)
	}
	if _, err := ParseStrategy(c.Retry.Strategy); err != nil {
		return err
	}
	if c.Bulkhead.MaxConcurrent < 0 || c.Bulkhead.MaxWait < 0 {
		return fmt.Errorf("%w: bulkhead settings must not be negative", ErrInvalidValue)
	}
	if c.Cache.Size < 0 || c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache settings must not be negative", ErrInvalidValue)
	}
	return c.Observe.Validate()
}

// ParseStrategy maps a strategy name to a resilience.BackoffStrategy. The
// empty string means constant.
func ParseStrategy(name string) (resilience.BackoffStrategy, error) {
	switch strings.ToLower(name) {
	case "", "constant":
		return resilience.BackoffConstant, nil
	case "exponential":
		return resilience.BackoffExponential, nil
	case "fibonacci":
		return resilience.BackoffFibonacci, nil
	case "linear":
		return resilience.BackoffLinear, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
	}
}

// Policy converts the section into a retry configuration. ok is false when
// retries are disabled.
func (r RetryConfig) Policy() (cfg resilience.RetryConfig, ok bool) {
	if r.Attempts == 0 {
		return resilience.RetryConfig{}, false
	}
	strategy, _ := ParseStrategy(r.Strategy)
	return resilience.RetryConfig{
		MaxAttempts:   r.Attempts,
		Delay:         r.Delay,
		MaxDelay:      r.MaxDelay,
		Strategy:      strategy,
		JitterPercent: r.Jitter,
		MaxElapsed:    r.MaxElapsed,
	}, true
}

// Bulkhead builds the bulkhead, or returns nil when disabled.
func (b BulkheadConfig) Bulkhead() *resilience.Bulkhead {
	if b.MaxConcurrent == 0 {
		return nil
	}
	return resilience.NewBulkhead(resilience.BulkheadConfig{
		MaxConcurrent: b.MaxConcurrent,
		MaxWait:       b.MaxWait,
	})
}

// Policy converts the section into a cache policy.
func (c CacheConfig) Policy() cache.Policy {
	p := cache.DefaultPolicy()
	p.TTL = c.TTL
	return p
}

// NewCache builds the result cache for values of type T, or returns nil
// when caching is disabled. A nil *cache.Cache runs every call uncached.
func NewCache[T any](c CacheConfig, opts ...cache.Option) (*cache.Cache[T], error) {
	if !c.Enabled {
		return nil, nil
	}
	var store cache.Store[T]
	if c.Size > 0 {
		lru, err := cache.NewLRUStore[T](c.Size)
		if err != nil {
			return nil, err
		}
		store = lru
	}
	return cache.New[T](store, c.Policy(), opts...), nil
}
