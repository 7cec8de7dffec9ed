package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittovec/pkg/backend/builtin"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/spf13/cobra"
)

var schemaFile string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print a JSON schema for the configuration file",
	Long: `Print a JSON schema (draft 2020-12) for config.yaml, for editor
completion and CI checks. Category keys and store kinds are enumerated;
the per-kind config block is free-form, so use "dittovec config validate"
for those settings.

  dittovec config schema
  dittovec config schema --file config.schema.json`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFile, "file", "f", "", "Write to this file instead of stdout")
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := json.MarshalIndent(configSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if schemaFile == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(schemaFile, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", schemaFile)
	return nil
}

func configSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference: true,
		FieldNameTag:   "yaml",
	}
	s := r.Reflect(&config.Config{})
	s.Version = "https://json-schema.org/draft/2020-12/schema"
	s.Title = "dittovec configuration"
	enumerateStores(s)
	return s
}

// enumerateStores restricts stores.<category> keys to known categories and
// stores.<category>.<name>.kind to the built-in kinds.
func enumerateStores(root *jsonschema.Schema) {
	if root.Properties == nil {
		return
	}
	stores, ok := root.Properties.Get("stores")
	if !ok || stores == nil {
		return
	}

	categories := make([]any, 0, len(store.Categories))
	for _, c := range store.Categories {
		categories = append(categories, string(c))
	}
	stores.PropertyNames = &jsonschema.Schema{Type: "string", Enum: categories}

	byName := stores.AdditionalProperties
	if byName == nil || byName.AdditionalProperties == nil || byName.AdditionalProperties.Properties == nil {
		return
	}
	kind, ok := byName.AdditionalProperties.Properties.Get("kind")
	if !ok || kind == nil {
		return
	}
	for _, k := range builtin.Adapters().Kinds() {
		kind.Enum = append(kind.Enum, k)
	}
}
