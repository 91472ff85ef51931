package fedroute

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/federation-go/pkg/cost"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

var (
	costsInputTokens  int
	costsOutputTokens int
	costsMinQuality   float64
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Compare provider costs for a token budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		reg, err := buildRegistry(ctx, nil)
		if err != nil {
			return err
		}

		var providers []*registry.Provider
		for _, p := range reg.GetAll() {
			if p.Enabled {
				providers = append(providers, p)
			}
		}

		estimator := cost.NewEstimator()
		comparisons := estimator.Compare(providers, costsInputTokens, costsOutputTokens)

		fmt.Printf("Cost for %d input / %d output tokens:\n", costsInputTokens, costsOutputTokens)
		for _, c := range comparisons {
			fmt.Printf("  %-12s $%.4f\n", c.Provider.ID, c.Cost)
		}

		rec := estimator.Recommend(providers, costsInputTokens, costsOutputTokens, costsMinQuality)
		fmt.Printf("\n%s\n", rec.Summary)
		return nil
	},
}

func init() {
	costsCmd.Flags().IntVar(&costsInputTokens, "input-tokens", 1000, "input token count")
	costsCmd.Flags().IntVar(&costsOutputTokens, "output-tokens", 1000, "output token count")
	costsCmd.Flags().Float64Var(&costsMinQuality, "min-quality", 0, "minimum quality score for recommendations")

	RootCmd.AddCommand(costsCmd)
}
