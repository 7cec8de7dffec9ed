package config

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/marmos91/dittovec/internal/cli/output"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/marmos91/dittovec/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file without opening any store",
	Long: `Load the configuration file and build the orchestrator from it without
connecting to anything. Besides YAML and value errors this reports unknown
store kinds, kinds placed under a category they do not serve, duplicate
store names and kind-specific settings errors, for disabled stores too.

  dittovec config validate
  dittovec config validate --config /etc/dittovec/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	orch, err := orchestrator.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}
	stores := orch.Stores()
	orch.Shutdown(context.Background())

	enabled := 0
	for _, s := range stores {
		if s.Enabled {
			enabled++
		}
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%s: OK\n", path)
	printWarnings(w, configWarnings(cfg, len(stores), enabled))

	_, _ = fmt.Fprintln(w)
	tags := cfg.ProfileTags()
	return output.SimpleTable(w, [][2]string{
		{"Stores", fmt.Sprintf("%d (%d enabled)", len(stores), enabled)},
		{"Kinds", output.Dash(tags["kinds"])},
		{"API port", apiPort(cfg)},
		{"Max workers", strconv.Itoa(cfg.Orchestrator.MaxWorkers)},
		{"Probe", probeSummary(cfg)},
		{"Log level", cfg.Logging.Level},
	})
}

func configWarnings(cfg *config.Config, total, enabled int) []string {
	var out []string
	switch {
	case total == 0:
		out = append(out, "no stores configured")
	case enabled == 0:
		out = append(out, "every store is disabled")
	}
	if !cfg.API.IsEnabled() {
		out = append(out, "API server disabled; only the CLI can reach the stores")
	}
	if cfg.API.IsEnabled() && cfg.API.WriteTimeout < cfg.Orchestrator.DefaultTimeout {
		out = append(out, fmt.Sprintf("api.write_timeout (%s) is shorter than orchestrator.default_timeout (%s)",
			cfg.API.WriteTimeout, cfg.Orchestrator.DefaultTimeout))
	}
	return out
}

func printWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "\nWarnings:")
	for _, msg := range warnings {
		_, _ = fmt.Fprintf(w, "  - %s\n", msg)
	}
}

func apiPort(cfg *config.Config) string {
	if !cfg.API.IsEnabled() {
		return "disabled"
	}
	return strconv.Itoa(cfg.API.Port)
}

func probeSummary(cfg *config.Config) string {
	if !cfg.Probe.Enabled {
		return "disabled"
	}
	return cfg.Probe.Schedule
}
