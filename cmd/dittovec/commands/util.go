package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/marmos91/dittovec/pkg/dispatch"
	"github.com/marmos91/dittovec/pkg/orchestrator"
	"gopkg.in/yaml.v3"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openOrchestrator loads the configuration and builds an in-process
// orchestrator for a one-shot command. Logs go to stderr so they never mix
// with json or yaml output. Stores open lazily on first use and the caller
// must call closeOrchestrator.
func openOrchestrator() (*orchestrator.Orchestrator, *config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	if err := InitLogger(cfg); err != nil {
		return nil, nil, err
	}

	orch, err := orchestrator.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return orch, cfg, nil
}

func closeOrchestrator(orch *orchestrator.Orchestrator, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Orchestrator.ShutdownTimeout)
	defer cancel()
	if report := orch.Shutdown(ctx); !report.OK() {
		logger.Warn("Shutdown finished with errors", logger.Err(report.Err()))
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// parseVector parses "1,0.5,-2" or "[1, 0.5, -2]".
func parseVector(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("vector is empty")
	}

	var vec []float64
	for part := range strings.SplitSeq(raw, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", strings.TrimSpace(part), err)
		}
		vec = append(vec, f)
	}
	return vec, nil
}

// parseMetadata turns k=v flag values into typed metadata. Values are read
// as YAML scalars, so "year=2024" stores a number and "draft=true" a bool.
func parseMetadata(pairs map[string]string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	meta := make(map[string]any, len(pairs))
	for k, v := range pairs {
		var val any
		if err := yaml.Unmarshal([]byte(v), &val); err != nil {
			val = v
		}
		switch val.(type) {
		case string, bool, int, float64:
		default:
			// null, lists and mappings stay literal
			val = v
		}
		meta[k] = val
	}
	return meta
}

// failIfAllFailed turns a fan-out where no store succeeded into a command
// error. Partial failures are reported in the output only.
func failIfAllFailed(outcomes map[string]dispatch.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		if o.OK() {
			return nil
		}
	}
	return fmt.Errorf("all %d stores failed", len(outcomes))
}
