package config

import (
	"strings"
	"testing"

	"github.com/marmos91/dittovec/pkg/store"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Logging.Level") {
		t.Errorf("Expected field name in error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_NegativeWorkers(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Orchestrator.MaxWorkers = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative max_workers")
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate above 1")
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for telemetry without endpoint")
	}
	if !strings.Contains(err.Error(), "telemetry.endpoint") {
		t.Errorf("Expected endpoint error, got: %v", err)
	}
}

func TestValidate_ProbeSchedule(t *testing.T) {
	for _, schedule := range []string{"@every 30s", "*/5 * * * *", "@hourly"} {
		cfg := GetDefaultConfig()
		cfg.Probe.Enabled = true
		cfg.Probe.Schedule = schedule
		if err := Validate(cfg); err != nil {
			t.Errorf("Expected schedule %q to be valid, got: %v", schedule, err)
		}
	}

	cfg := GetDefaultConfig()
	cfg.Probe.Enabled = true
	cfg.Probe.Schedule = "every now and then"
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for bad probe schedule")
	}
}

func TestValidate_PortClash(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.API.Port

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for metrics and API on one port")
	}
}

func TestValidate_StoreWithoutKind(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Stores = map[string]map[string]StoreConfig{
		"vector": {"v1": {}},
		"graph":  {"g1": {}},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for stores without kind")
	}
	if !store.IsCode(err, store.ErrConfig) {
		t.Errorf("Expected ConfigError, got: %v", err)
	}
	if !strings.Contains(err.Error(), "v1") || !strings.Contains(err.Error(), "g1") {
		t.Errorf("Expected every failing store reported, got: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"debug", "Info", "WARN", "error"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level
		ApplyDefaults(cfg)
		if err := Validate(cfg); err != nil {
			t.Errorf("Expected level %q to be valid, got: %v", level, err)
		}
	}
}
