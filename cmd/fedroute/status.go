package fedroute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/federation-go/pkg/adapter"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe provider health",
	Long:  `Run one health sweep against every enabled provider and print the results.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := buildRegistry(ctx, nil)
	if err != nil {
		return err
	}

	factory := adapter.NewFactory()
	monitor := registry.NewMonitor(reg, factory.Probe(), cfg.Health.Interval)
	if err := monitor.Sweep(ctx); err != nil {
		return err
	}

	all := reg.GetAll()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("%-12s %-10s %-12s %s\n", "ID", "STATUS", "LATENCY", "CIRCUIT")
	for _, id := range ids {
		p := all[id]
		if !p.Enabled {
			continue
		}
		circuit := "closed"
		if p.Health.CircuitOpen {
			circuit = fmt.Sprintf("open until %s", p.Health.CircuitOpenUntil.Format(time.RFC3339))
		}
		fmt.Printf("%-12s %-10s %8.0fms   %s\n",
			p.ID, p.Health.Status, p.Health.AvgLatencyMS, circuit)
	}

	return nil
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
