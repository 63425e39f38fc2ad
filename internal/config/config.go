// Package config loads the device-level configuration the orchestrator
// is built from: where it keeps its files, how aggressively it retries,
// where the control plane lives, and how its observability stack is
// wired.
//
// Grounded on the teacher's internal/config: viper for layered
// YAML-plus-env configuration, mapstructure tags, SetDefault calls for
// the fields that have defaults, and a Validate pass returning descriptive
// errors instead of panicking deep in a constructor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Device describes where this SDK instance keeps its on-disk state and
// whether it currently believes it has connectivity.
type Device struct {
	HomeDir          string `mapstructure:"home_dir"`
	CompatibilityTag string `mapstructure:"compatibility_tag"`
	Online           bool   `mapstructure:"online"`
}

// Scheduler configures the single-consumer job scheduler (C4).
type Scheduler struct {
	Capacity           int           `mapstructure:"capacity"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	PriorityDrainFirst bool          `mapstructure:"priority_drain_first"`
}

// Backoff bounds a retry delay.
type Backoff struct {
	Base time.Duration `mapstructure:"base"`
	Max  time.Duration `mapstructure:"max"`
}

// Download configures asset download retry/poll behaviour (C6), plus the
// S3-compatible store MODEL/DOCUMENT/LLM assets are fetched from.
type Download struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	Backoff      Backoff       `mapstructure:"backoff"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	CacheDir     string        `mapstructure:"cache_dir"`

	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"` // non-empty selects a MinIO/LocalStack-style path-style endpoint
}

// ControlPlane configures the deployment-manifest HTTP client.
type ControlPlane struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
}

// Retention configures the on-disk asset cache sweep.
type Retention struct {
	Enabled      bool     `mapstructure:"enabled"`
	CronSchedule string   `mapstructure:"cron_schedule"`
	MaxAgeDays   int      `mapstructure:"max_age_days"`
	Patterns     []string `mapstructure:"patterns"`
}

// Ledger configures the at-most-once asset-materialisation ledger.
type Ledger struct {
	Backend   string        `mapstructure:"backend"` // "memory" or "redis"
	RedisAddr string        `mapstructure:"redis_addr"`
	Namespace string        `mapstructure:"namespace"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// TracingConfig configures the otel tracer provider.
type TracingConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Endpoint           string   `mapstructure:"endpoint"`
	Environment        string   `mapstructure:"environment"`
	SamplingStrategy   string   `mapstructure:"sampling_strategy"` // "always", "never", "probabilistic"
	SamplingRate       float64  `mapstructure:"sampling_rate"`
	Insecure           bool     `mapstructure:"insecure"`
	AttributeAllowlist []string `mapstructure:"attribute_allowlist"`
	RedactSensitive    bool     `mapstructure:"redact_sensitive"`
}

// Observability configures logging, metrics and tracing.
type Observability struct {
	MetricsPort int           `mapstructure:"metrics_port"`
	LogLevel    string        `mapstructure:"log_level"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// Config is the complete device configuration loaded by Load.
type Config struct {
	Device        Device        `mapstructure:"device"`
	Scheduler     Scheduler     `mapstructure:"scheduler"`
	Download      Download      `mapstructure:"download"`
	ControlPlane  ControlPlane  `mapstructure:"control_plane"`
	Retention     Retention     `mapstructure:"retention"`
	Ledger        Ledger        `mapstructure:"ledger"`
	Observability Observability `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Device: Device{
			HomeDir:          ".",
			CompatibilityTag: "v1_",
			Online:           true,
		},
		Scheduler: Scheduler{
			Capacity:           1024,
			TickInterval:       200 * time.Millisecond,
			PriorityDrainFirst: true,
		},
		Download: Download{
			MaxRetries:   3,
			Backoff:      Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second},
			PollInterval: 2 * time.Second,
			CacheDir:     "cache",
			S3Bucket:     "edgecore-assets",
			S3Region:     "us-east-1",
		},
		ControlPlane: ControlPlane{
			BaseURL:         "https://control-plane.internal",
			Timeout:         10 * time.Second,
			RateLimitPerSec: 1,
		},
		Retention: Retention{
			Enabled:      true,
			CronSchedule: "0 0 * * *",
			MaxAgeDays:   30,
			Patterns:     []string{"**/*.model", "**/*.doc"},
		},
		Ledger: Ledger{
			Backend:   "memory",
			Namespace: "edgecore",
			TTL:       24 * time.Hour,
		},
		Observability: Observability{
			MetricsPort: 9090,
			LogLevel:    "info",
			Tracing:     TracingConfig{Enabled: false, SamplingStrategy: "never"},
		},
	}
}

// Load reads configuration from a YAML file at path, falling back to
// defaults for anything the file or environment does not set. Env
// overrides use the same dotted keys with "." replaced by "_" (e.g.
// DEVICE_HOME_DIR), matching the teacher's SetEnvKeyReplacer style.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("device.home_dir", def.Device.HomeDir)
	v.SetDefault("device.compatibility_tag", def.Device.CompatibilityTag)
	v.SetDefault("device.online", def.Device.Online)

	v.SetDefault("scheduler.capacity", def.Scheduler.Capacity)
	v.SetDefault("scheduler.tick_interval", def.Scheduler.TickInterval)
	v.SetDefault("scheduler.priority_drain_first", def.Scheduler.PriorityDrainFirst)

	v.SetDefault("download.max_retries", def.Download.MaxRetries)
	v.SetDefault("download.backoff.base", def.Download.Backoff.Base)
	v.SetDefault("download.backoff.max", def.Download.Backoff.Max)
	v.SetDefault("download.poll_interval", def.Download.PollInterval)
	v.SetDefault("download.cache_dir", def.Download.CacheDir)
	v.SetDefault("download.s3_bucket", def.Download.S3Bucket)
	v.SetDefault("download.s3_region", def.Download.S3Region)

	v.SetDefault("control_plane.base_url", def.ControlPlane.BaseURL)
	v.SetDefault("control_plane.timeout", def.ControlPlane.Timeout)
	v.SetDefault("control_plane.rate_limit_per_sec", def.ControlPlane.RateLimitPerSec)

	v.SetDefault("retention.enabled", def.Retention.Enabled)
	v.SetDefault("retention.cron_schedule", def.Retention.CronSchedule)
	v.SetDefault("retention.max_age_days", def.Retention.MaxAgeDays)
	v.SetDefault("retention.patterns", def.Retention.Patterns)

	v.SetDefault("ledger.backend", def.Ledger.Backend)
	v.SetDefault("ledger.namespace", def.Ledger.Namespace)
	v.SetDefault("ledger.ttl", def.Ledger.TTL)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.sampling_strategy", def.Observability.Tracing.SamplingStrategy)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field config constraints, returning a
// descriptive error (spec.md §7's ConfigInvalid kind) rather than
// letting a bad value surface as a confusing failure deeper in the
// system.
func Validate(cfg *Config) error {
	if cfg.Device.HomeDir == "" {
		return fmt.Errorf("config: device.home_dir must be set")
	}
	if cfg.Scheduler.Capacity < 1 {
		return fmt.Errorf("config: scheduler.capacity must be >= 1")
	}
	if cfg.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("config: scheduler.tick_interval must be > 0")
	}
	if cfg.Download.MaxRetries < 0 {
		return fmt.Errorf("config: download.max_retries must be >= 0")
	}
	if cfg.Download.PollInterval <= 0 {
		return fmt.Errorf("config: download.poll_interval must be > 0")
	}
	if cfg.ControlPlane.BaseURL == "" {
		return fmt.Errorf("config: control_plane.base_url must be set")
	}
	if cfg.ControlPlane.RateLimitPerSec <= 0 {
		return fmt.Errorf("config: control_plane.rate_limit_per_sec must be > 0")
	}
	switch cfg.Ledger.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: ledger.backend must be \"memory\" or \"redis\", got %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.Backend == "redis" && cfg.Ledger.RedisAddr == "" {
		return fmt.Errorf("config: ledger.redis_addr must be set when ledger.backend is \"redis\"")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("config: observability.metrics_port must be 1..65535")
	}
	return nil
}
