package commands

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittovec/pkg/api/handlers"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/spf13/cobra"
)

var (
	addID       string
	addVector   string
	addMetadata map[string]string
	addStores   []string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a vector to vector stores",
	Long: `Add one vector to every selected vector store that supports writes.
Each store reports its own outcome; the command fails only when every
store failed.

Examples:
  dittovec add --id 7 --vector 1,0,0
  dittovec add --id doc-1 --vector "[0.1, 0.2, 0.3]" --metadata lang=en --metadata year=2024 --store docs`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "Vector id (required)")
	addCmd.Flags().StringVar(&addVector, "vector", "", "Comma separated components (required)")
	addCmd.Flags().StringToStringVar(&addMetadata, "metadata", nil, "Metadata as key=value (repeatable)")
	addCmd.Flags().StringSliceVar(&addStores, "store", nil, "Target stores (default: all vector stores)")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("vector")
}

func runAdd(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(addID)
	if id == "" {
		return fmt.Errorf("--id must not be empty")
	}
	vec, err := parseVector(addVector)
	if err != nil {
		return err
	}

	orch, cfg, err := openOrchestrator()
	if err != nil {
		return err
	}
	defer closeOrchestrator(orch, cfg)

	rec := store.Record{ID: id, Vector: vec, Metadata: parseMetadata(addMetadata)}
	outcomes, err := orch.Add(cmd.Context(), rec, addStores...)
	if err != nil {
		return err
	}
	if err := printer.Print(outcomeList(handlers.OutcomeViews(outcomes, false))); err != nil {
		return err
	}
	return failIfAllFailed(outcomes)
}
