package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path. Embedded stores in
// the sample keep their data in a "data" directory next to the file.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := sampleConfig(filepath.ToSlash(filepath.Join(dir, "data")))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func sampleConfig(dataDir string) string {
	return fmt.Sprintf(`# dittovec configuration file
#
# Every key can be overridden with an environment variable, e.g.
#   DITTOVEC_LOGGING_LEVEL=DEBUG

logging:
  level: INFO     # DEBUG, INFO, WARN, ERROR
  format: text    # text, json
  output: stdout  # stdout, stderr or a file path

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

metrics:
  enabled: false
  port: 9090

api:
  enabled: true
  port: 8080

orchestrator:
  max_workers: 16
  default_timeout: 30s
  init_timeout: 30s
  eager_init: false
  shutdown_timeout: 30s

probe:
  enabled: true
  schedule: "@every 30s"
  timeout: 10s

# stores: <category> -> <name> -> {kind, enabled, config}
# categories: vector, graph, key_value, relational, cache
stores:
  vector:
    hnsw_main:
      kind: hnsw
      config:
        path: %[1]s/hnsw_main.db
        dimension: 3
        metric: euclidean
        m: 16
        ef_construction: 200
    ivf_main:
      kind: ivf
      config:
        dimension: 3
        nlist: 4
        nprobe: 2
  key_value:
    badger_kv:
      kind: badger
      config:
        path: %[1]s/badger_kv
        memtable_size: 16Mi
    # s3_kv:
    #   kind: s3
    #   config:
    #     bucket: vectors
    #     region: us-east-1
    # mongo_kv:
    #   kind: mongodb
    #   config:
    #     uri: mongodb://localhost:27017
  relational:
    sqlite_rel:
      kind: sqlite
      config:
        path: %[1]s/vectors.db
        journal_mode: WAL
        synchronous: NORMAL
    # pg_rel:
    #   kind: postgres
    #   config:
    #     host: localhost
    #     database: dittovec
    #     user: dittovec
  cache:
    mem_cache:
      kind: memory
      config:
        max_vectors: 100000
    # nats_cache:
    #   kind: natskv
    #   config:
    #     url: nats://localhost:4222
    #     bucket: vectors
  # graph:
  #   janus:
  #     kind: gremlin
  #     config:
  #       host: localhost
  #       port: 8182
`, dataDir)
}
