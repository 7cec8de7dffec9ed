// Package config holds the "dittovec config" subcommands.
package config

import "github.com/spf13/cobra"

// Cmd groups the configuration file commands.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Create, check and inspect the configuration file",
	Long: `Work with the dittovec configuration file.

  init      write a sample file with one store of each embedded kind
  validate  load the file and open nothing, reporting every store problem
  show      print the effective configuration after defaults and env
  schema    print a JSON schema for editor completion`,
}

func init() {
	Cmd.AddCommand(initCmd, validateCmd, showCmd, schemaCmd)
}
