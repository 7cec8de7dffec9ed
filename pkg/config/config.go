// Package config loads the dittovec configuration from YAML, DITTOVEC_*
// environment variables and built-in defaults, in that order of precedence
// (environment first).
package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/dittovec/internal/telemetry"
)

// Config is the root of config.yaml.
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	API          APIConfig          `mapstructure:"api" yaml:"api"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Probe        ProbeConfig        `mapstructure:"probe" yaml:"probe"`

	// Stores maps category -> store name -> entry. Names are
	// case-insensitive and lowered when descriptors are built.
	Stores map[string]map[string]StoreConfig `mapstructure:"stores" yaml:"stores"`
}

type LoggingConfig struct {
	// Level is upper-cased by ApplyDefaults.
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig enables OTLP trace export and Pyroscope profiling.
// Both are off unless enabled explicitly.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

type ProfilingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// ProfileTypes uses the pyroscope names: cpu, alloc_space, goroutines,
	// mutex_count, block_duration and so on.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// Tracing converts the section for telemetry.Init.
func (c TelemetryConfig) Tracing(serviceName, version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// Profiler converts the profiling subsection for telemetry.InitProfiling.
func (c TelemetryConfig) Profiler(serviceName, version string, tags map[string]string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Profiling.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       c.Profiling.Endpoint,
		ProfileTypes:   slices.Clone(c.Profiling.ProfileTypes),
		Tags:           tags,
	}
}

// MetricsConfig serves /metrics on its own port. Nothing is collected when
// disabled.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

type OrchestratorConfig struct {
	// MaxWorkers caps concurrent backend calls; the pool is further capped
	// by the number of enabled stores.
	MaxWorkers int `mapstructure:"max_workers" validate:"gte=0" yaml:"max_workers"`
	// DefaultTimeout applies to a fan-out whose context has no deadline.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"gte=0" yaml:"default_timeout"`
	InitTimeout    time.Duration `mapstructure:"init_timeout" validate:"gte=0" yaml:"init_timeout"`
	// EagerInit opens every enabled store in Start instead of on first use.
	EagerInit       bool          `mapstructure:"eager_init" yaml:"eager_init"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0" yaml:"shutdown_timeout"`
}

// ProbeConfig schedules the background status probe.
type ProbeConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Schedule is a five-field cron spec or a descriptor like "@every 30s".
	Schedule string        `mapstructure:"schedule" yaml:"schedule"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`
}

// StoreKinds returns how many stores of each kind are configured, keyed by
// normalized kind. Disabled stores count too.
func (c *Config) StoreKinds() map[string]int {
	kinds := make(map[string]int)
	for _, entries := range c.Stores {
		for _, entry := range entries {
			if entry.Kind != "" {
				kinds[strings.ToLower(strings.TrimSpace(entry.Kind))]++
			}
		}
	}
	return kinds
}

// ProfileTags summarizes the configured stores as pyroscope tags, e.g.
// stores=3 kinds=hnsw,redis.
func (c *Config) ProfileTags() map[string]string {
	kinds := c.StoreKinds()
	total := 0
	for _, n := range kinds {
		total += n
	}
	return map[string]string{
		"stores": fmt.Sprint(total),
		"kinds":  strings.Join(slices.Sorted(maps.Keys(kinds)), ","),
	}
}
