package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittovec/pkg/store"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "info"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Orchestrator.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Orchestrator.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Probe.Schedule != "@every 30s" {
		t.Errorf("Expected default probe schedule, got %q", cfg.Probe.Schedule)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if len(cfg.Stores) != 0 {
		t.Errorf("Expected no stores in default config, got %d categories", len(cfg.Stores))
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: INFO
  invalid yaml here [[[
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_Stores(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
orchestrator:
  max_workers: 4
  default_timeout: 2s
stores:
  vector:
    V1:
      kind: hnsw
      config:
        path: "`+yamlSafePath(dir)+`/v1.db"
        dimension: 3
  key_value:
    kv1:
      kind: badger
      enabled: false
      config:
        in_memory: true
        memtable_size: 8Mi
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Orchestrator.MaxWorkers != 4 {
		t.Errorf("Expected max_workers 4, got %d", cfg.Orchestrator.MaxWorkers)
	}
	if cfg.Orchestrator.DefaultTimeout != 2*time.Second {
		t.Errorf("Expected default_timeout 2s, got %v", cfg.Orchestrator.DefaultTimeout)
	}

	descs, err := cfg.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors failed: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(descs))
	}

	// key_value sorts before vector
	kv, v1 := descs[0], descs[1]
	if kv.Name != "kv1" || kv.Category != store.CategoryKeyValue || kv.Enabled {
		t.Errorf("Unexpected kv descriptor: %+v", kv)
	}
	if kv.Config["memtable_size"] != "8Mi" {
		t.Errorf("Expected raw memtable_size to be kept for the adapter, got %v", kv.Config["memtable_size"])
	}
	if v1.Name != "v1" || v1.Kind != "hnsw" || !v1.Enabled {
		t.Errorf("Unexpected vector descriptor: %+v", v1)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: INFO
`)
	t.Setenv("DITTOVEC_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override DEBUG, got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidCategory(t *testing.T) {
	path := writeConfig(t, `
stores:
  timeseries:
    t1:
      kind: memory
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for unknown category")
	}
	if !store.IsCode(err, store.ErrConfig) {
		t.Errorf("Expected ConfigError, got %v", err)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Stores = map[string]map[string]StoreConfig{
		"cache": {"c1": {Kind: "memory", Config: map[string]any{"max_vectors": 10}}},
	}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	descs, err := loaded.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors failed: %v", err)
	}
	if len(descs) != 1 || descs[0].Name != "c1" || descs[0].Kind != "memory" {
		t.Errorf("Unexpected descriptors after round trip: %+v", descs)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "dittovec") {
		t.Errorf("Expected XDG config dir, got %q", got)
	}
	if DefaultConfigExists() {
		t.Error("Expected no default config in a fresh directory")
	}
}

func TestProfileTags(t *testing.T) {
	cfg := &Config{Stores: map[string]map[string]StoreConfig{
		"vector": {"v1": {Kind: "HNSW"}, "v2": {Kind: "hnsw"}},
		"cache":  {"c1": {Kind: "redis"}},
	}}

	tags := cfg.ProfileTags()
	if tags["stores"] != "3" {
		t.Errorf("Expected 3 stores, got %q", tags["stores"])
	}
	if tags["kinds"] != "hnsw,redis" {
		t.Errorf("Expected kinds 'hnsw,redis', got %q", tags["kinds"])
	}
}

func TestTelemetryConversion(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRate = 0.5

	tc := cfg.Telemetry.Tracing("dittovec", "v1.2.3")
	if !tc.Enabled || tc.ServiceVersion != "v1.2.3" || tc.SampleRate != 0.5 || tc.Endpoint != DefaultOTLPEndpoint {
		t.Errorf("Unexpected tracing config %+v", tc)
	}

	pc := cfg.Telemetry.Profiler("dittovec", "v1.2.3", map[string]string{"stores": "0"})
	if pc.Enabled || pc.Endpoint != DefaultPyroscopeURL || len(pc.ProfileTypes) != 4 || pc.Tags["stores"] != "0" {
		t.Errorf("Unexpected profiling config %+v", pc)
	}
}
