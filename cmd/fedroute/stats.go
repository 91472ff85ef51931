package fedroute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recorded routing outcomes per provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := buildRegistry(ctx, nil)
		if err != nil {
			return err
		}

		all := reg.GetAll()
		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		fmt.Printf("%-12s %-10s %-10s %-10s %-12s %s\n",
			"ID", "REQUESTS", "SUCCESS", "FAILED", "COST($)", "AVG LATENCY")
		for _, id := range ids {
			stats, err := st.GetRoutingStats(ctx, id, statsDays)
			if err != nil {
				return err
			}
			if stats == nil {
				continue
			}
			fmt.Printf("%-12s %-10d %-10d %-10d %-12.4f %.0fms\n",
				id, stats.TotalRequests, stats.SuccessfulRequests, stats.FailedRequests,
				stats.TotalCost, stats.AvgLatencyMS)
		}

		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "lookback window in days")

	RootCmd.AddCommand(statsCmd)
}
