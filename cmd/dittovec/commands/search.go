package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittovec/internal/cli/output"
	"github.com/marmos91/dittovec/pkg/api/handlers"
	"github.com/marmos91/dittovec/pkg/dispatch"
	"github.com/marmos91/dittovec/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var (
	searchVector          string
	searchK               int
	searchFederated       bool
	searchStores          []string
	searchExclude         []string
	searchExcludeFullScan bool
	searchTimeout         time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search vector stores for the nearest neighbours",
	Long: `Search every selected vector store for the k nearest vectors.

By default each store's results are listed separately. With --federated the
per-store candidates are merged into one ranking of at most k hits ordered
by distance; stores that fail or miss the deadline are reported but never
fail the search.

Examples:
  dittovec search --vector 1,0,0 -k 5
  dittovec search --vector 1,0,0 -k 10 --federated --exclude-full-scan
  dittovec search --vector 1,0,0 -k 3 --federated --exclude legacy --timeout 2s -o json`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchVector, "vector", "", "Comma separated query components (required)")
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 10, "Number of results")
	searchCmd.Flags().BoolVar(&searchFederated, "federated", false, "Merge results across stores")
	searchCmd.Flags().StringSliceVar(&searchStores, "store", nil, "Stores to search (default: all vector stores)")
	searchCmd.Flags().StringSliceVar(&searchExclude, "exclude", nil, "Stores to skip")
	searchCmd.Flags().BoolVar(&searchExcludeFullScan, "exclude-full-scan", false, "Skip stores that answer by full scan")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 0, "Deadline for the whole search (default: orchestrator default_timeout)")
	_ = searchCmd.MarkFlagRequired("vector")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := parseVector(searchVector)
	if err != nil {
		return err
	}

	orch, cfg, err := openOrchestrator()
	if err != nil {
		return err
	}
	defer closeOrchestrator(orch, cfg)

	ctx := cmd.Context()
	if searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, searchTimeout)
		defer cancel()
	}

	if searchFederated {
		return runFederatedSearch(ctx, orch, query)
	}

	outcomes, err := orch.Execute(ctx, dispatch.Request{
		Op:              dispatch.OpSearch,
		Targets:         searchStores,
		Exclude:         searchExclude,
		ExcludeFullScan: searchExcludeFullScan,
		Query:           query,
		K:               searchK,
	})
	if err != nil {
		return err
	}
	views := handlers.OutcomeViews(outcomes, true)
	if printer.Format() == output.FormatTable {
		if err := printer.Print(resultList(views)); err != nil {
			return err
		}
	} else if err := printer.Print(handlers.SearchResponse{Stores: views}); err != nil {
		return err
	}
	return failIfAllFailed(outcomes)
}

func runFederatedSearch(ctx context.Context, orch *orchestrator.Orchestrator, query []float64) error {
	res, err := orch.FederatedSearch(ctx, orchestrator.SearchOptions{
		Query:           query,
		K:               searchK,
		Stores:          searchStores,
		Exclude:         searchExclude,
		ExcludeFullScan: searchExcludeFullScan,
	})
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(handlers.SearchResponse{
			Federated: true,
			Hits:      res.Hits,
			Stores:    handlers.OutcomeViews(res.Outcomes, false),
		})
	}

	if len(res.Hits) == 0 {
		printer.Println("No results.")
	} else if err := printer.Print(hitList(res.Hits)); err != nil {
		return err
	}
	for _, o := range res.Failed() {
		printer.Warning(fmt.Sprintf("%s: %s: %v", o.Store, o.Code(), o.Err))
	}
	return failIfAllFailed(res.Outcomes)
}
