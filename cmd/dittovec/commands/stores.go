package commands

import (
	"github.com/marmos91/dittovec/internal/cli/output"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/spf13/cobra"
)

var storeCategories []string

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List configured stores",
	Long: `List every configured store with its category, kind, connection state
and capabilities. Disabled stores are listed with state "disabled".

Examples:
  # All stores
  dittovec stores

  # Only vector and cache stores, as JSON
  dittovec stores --category vector,cache -o json`,
	RunE: runStores,
}

func init() {
	storesCmd.Flags().StringSliceVar(&storeCategories, "category", nil, "Filter by category (vector|graph|key_value|relational|cache)")
}

func runStores(cmd *cobra.Command, args []string) error {
	var cats []store.Category
	for _, raw := range storeCategories {
		c, err := store.ParseCategory(raw)
		if err != nil {
			return err
		}
		cats = append(cats, c)
	}

	orch, cfg, err := openOrchestrator()
	if err != nil {
		return err
	}
	defer closeOrchestrator(orch, cfg)

	stores := orch.Stores(cats...)
	if len(stores) == 0 && printer.Format() == output.FormatTable {
		printer.Println("No stores configured.")
		return nil
	}
	return printer.Print(storeList(stores))
}
