package config

import (
	"strings"
	"time"
)

// Defaults for fields left at their zero value.
const (
	DefaultLogLevel        = "INFO"
	DefaultLogFormat       = "text"
	DefaultLogOutput       = "stdout"
	DefaultOTLPEndpoint    = "localhost:4317"
	DefaultPyroscopeURL    = "http://localhost:4040"
	DefaultMetricsPort     = 9090
	DefaultMaxWorkers      = 16
	DefaultFanOutTimeout   = 30 * time.Second
	DefaultInitTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultProbeSchedule   = "@every 30s"
	DefaultProbeTimeout    = 10 * time.Second
)

var defaultProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}

// ApplyDefaults fills zero-valued fields and upper-cases the log level.
// Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.applyDefaults()
	cfg.Telemetry.applyDefaults()
	cfg.Metrics.applyDefaults()
	cfg.API.ApplyDefaults()
	cfg.Orchestrator.applyDefaults()
	cfg.Probe.applyDefaults()
}

func (c *LoggingConfig) applyDefaults() {
	c.Level = strings.ToUpper(orDefault(c.Level, DefaultLogLevel))
	c.Format = orDefault(c.Format, DefaultLogFormat)
	c.Output = orDefault(c.Output, DefaultLogOutput)
}

func (c *TelemetryConfig) applyDefaults() {
	c.Endpoint = orDefault(c.Endpoint, DefaultOTLPEndpoint)
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	c.Profiling.Endpoint = orDefault(c.Profiling.Endpoint, DefaultPyroscopeURL)
	if len(c.Profiling.ProfileTypes) == 0 {
		c.Profiling.ProfileTypes = append([]string(nil), defaultProfileTypes...)
	}
}

// A disabled metrics section keeps port 0 so it never clashes with the API.
func (c *MetricsConfig) applyDefaults() {
	if c.Enabled {
		c.Port = orDefault(c.Port, DefaultMetricsPort)
	}
}

func (c *OrchestratorConfig) applyDefaults() {
	c.MaxWorkers = orDefault(c.MaxWorkers, DefaultMaxWorkers)
	c.DefaultTimeout = orDefault(c.DefaultTimeout, DefaultFanOutTimeout)
	c.InitTimeout = orDefault(c.InitTimeout, DefaultInitTimeout)
	c.ShutdownTimeout = orDefault(c.ShutdownTimeout, DefaultShutdownTimeout)
}

func (c *ProbeConfig) applyDefaults() {
	c.Schedule = orDefault(c.Schedule, DefaultProbeSchedule)
	c.Timeout = orDefault(c.Timeout, DefaultProbeTimeout)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// GetDefaultConfig returns a Config with every default applied and no stores.
func GetDefaultConfig() *Config {
	cfg := new(Config)
	ApplyDefaults(cfg)
	return cfg
}
