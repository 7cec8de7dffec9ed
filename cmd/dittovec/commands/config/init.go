package config

import (
	"fmt"
	"os"

	"github.com/marmos91/dittovec/internal/cli/prompt"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample configuration with one store of each embedded kind and
commented examples for the networked ones. Data files of the embedded stores
go to a "data" directory next to the config file.

The file is written to $XDG_CONFIG_HOME/dittovec/config.yaml unless --config
is given. An existing file is only replaced after confirmation or --force.

  dittovec config init
  dittovec config init --config ./dittovec.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Replace an existing file without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	w := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Replace %s", path), initForce)
		if prompt.IsAborted(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(w, "Existing configuration left untouched.")
			return nil
		}
	}

	if err := config.InitConfigToPath(path, true); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Wrote %s\n\n", path)
	_, _ = fmt.Fprintf(w, "Edit the stores section, then run:\n  dittovec config validate --config %s\n  dittovec start --config %s\n", path, path)
	return nil
}
