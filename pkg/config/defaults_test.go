package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_ZeroConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"logging.level", cfg.Logging.Level, DefaultLogLevel},
		{"logging.format", cfg.Logging.Format, DefaultLogFormat},
		{"logging.output", cfg.Logging.Output, DefaultLogOutput},
		{"telemetry.endpoint", cfg.Telemetry.Endpoint, DefaultOTLPEndpoint},
		{"telemetry.sample_rate", cfg.Telemetry.SampleRate, 1.0},
		{"telemetry.profiling.endpoint", cfg.Telemetry.Profiling.Endpoint, DefaultPyroscopeURL},
		{"orchestrator.max_workers", cfg.Orchestrator.MaxWorkers, 16},
		{"orchestrator.default_timeout", cfg.Orchestrator.DefaultTimeout, 30 * time.Second},
		{"orchestrator.init_timeout", cfg.Orchestrator.InitTimeout, 30 * time.Second},
		{"orchestrator.shutdown_timeout", cfg.Orchestrator.ShutdownTimeout, 30 * time.Second},
		{"orchestrator.eager_init", cfg.Orchestrator.EagerInit, false},
		{"probe.schedule", cfg.Probe.Schedule, "@every 30s"},
		{"probe.timeout", cfg.Probe.Timeout, 10 * time.Second},
		{"api.enabled", cfg.API.IsEnabled(), true},
		{"api.port", cfg.API.Port, 8080},
		{"api.read_timeout", cfg.API.ReadTimeout, 10 * time.Second},
		{"api.request_timeout", cfg.API.RequestTimeout, 60 * time.Second},
		{"metrics.port", cfg.Metrics.Port, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestApplyDefaults_MetricsPortOnlyWhenEnabled(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected metrics port %d, got %d", DefaultMetricsPort, cfg.Metrics.Port)
	}
}

func TestApplyDefaults_ProfileTypesNotShared(t *testing.T) {
	a, b := GetDefaultConfig(), GetDefaultConfig()
	a.Telemetry.Profiling.ProfileTypes[0] = "mutex_count"
	if b.Telemetry.Profiling.ProfileTypes[0] != "cpu" {
		t.Errorf("Expected independent profile type slices, got %v", b.Telemetry.Profiling.ProfileTypes)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:      LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		Orchestrator: OrchestratorConfig{MaxWorkers: 3, DefaultTimeout: time.Second},
		Probe:        ProbeConfig{Schedule: "*/5 * * * *", Timeout: time.Second},
	}
	ApplyDefaults(cfg)

	if cfg.Logging != (LoggingConfig{Level: "DEBUG", Format: "json", Output: "stderr"}) {
		t.Errorf("Expected explicit logging values with upper-cased level, got %+v", cfg.Logging)
	}
	if cfg.Orchestrator.MaxWorkers != 3 || cfg.Orchestrator.DefaultTimeout != time.Second {
		t.Errorf("Expected explicit orchestrator values preserved, got %+v", cfg.Orchestrator)
	}
	if cfg.Probe.Schedule != "*/5 * * * *" || cfg.Probe.Timeout != time.Second {
		t.Errorf("Expected explicit probe values preserved, got %+v", cfg.Probe)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}
