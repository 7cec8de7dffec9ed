package config

import (
	"os"

	"github.com/marmos91/dittovec/internal/cli/output"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective dittovec configuration after defaults and
environment overrides are applied.

Outputs YAML unless -o json is given.

Examples:
  dittovec config show
  dittovec config show -o json
  dittovec config show --config /etc/dittovec/config.yaml`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(raw)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		return output.PrintJSON(os.Stdout, cfg)
	}
	return output.PrintYAML(os.Stdout, cfg)
}
