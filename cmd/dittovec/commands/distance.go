package commands

import (
	"github.com/marmos91/dittovec/internal/cli/output"
	"github.com/marmos91/dittovec/pkg/api/handlers"
	"github.com/marmos91/dittovec/pkg/store/scan"
	"github.com/spf13/cobra"
)

var (
	distanceMetric string
	distanceA      string
	distanceB      string
)

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Compute the distance between two vectors",
	Long: `Compute the distance between two vectors with the metric used by
full-scan stores. Smaller is always closer: cosine reports 1 - similarity
and dot reports the negated inner product.

No configuration or store is needed.

Examples:
  dittovec distance --a 0,0 --b 3,4
  dittovec distance --metric cosine --a 1,0 --b 0,1
  dittovec distance --metric manhattan --a 0,0 --b 3,4`,
	RunE: runDistance,
}

func init() {
	distanceCmd.Flags().StringVar(&distanceMetric, "metric", "euclidean", "Metric (euclidean|cosine|dot|manhattan|hamming)")
	distanceCmd.Flags().StringVar(&distanceA, "a", "", "First vector (required)")
	distanceCmd.Flags().StringVar(&distanceB, "b", "", "Second vector (required)")
	_ = distanceCmd.MarkFlagRequired("a")
	_ = distanceCmd.MarkFlagRequired("b")
}

func runDistance(cmd *cobra.Command, args []string) error {
	m, err := scan.ParseMetric(distanceMetric)
	if err != nil {
		return err
	}
	a, err := parseVector(distanceA)
	if err != nil {
		return err
	}
	b, err := parseVector(distanceB)
	if err != nil {
		return err
	}
	d, err := scan.Distance(m, a, b)
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(handlers.DistanceResponse{Metric: m, Distance: d})
	}
	printer.Println(output.Float(d))
	return nil
}
