package commands

import (
	"github.com/marmos91/dittovec/pkg/api/handlers"
	"github.com/spf13/cobra"
)

var statusStores []string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the status of stores",
	Long: `Open the selected stores and ask each one for its status. With no
--store flag every enabled store is queried.

Examples:
  dittovec status
  dittovec status --store docs,cache -o yaml`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringSliceVar(&statusStores, "store", nil, "Stores to query (default: all enabled)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	orch, cfg, err := openOrchestrator()
	if err != nil {
		return err
	}
	defer closeOrchestrator(orch, cfg)

	outcomes, err := orch.Status(cmd.Context(), statusStores...)
	if err != nil {
		return err
	}
	if err := printer.Print(outcomeList(handlers.OutcomeViews(outcomes, false))); err != nil {
		return err
	}
	return failIfAllFailed(outcomes)
}
