package fedroute

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

var providersAsJSON bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

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

		if providersAsJSON {
			list := make([]*registry.Provider, 0, len(ids))
			for _, id := range ids {
				list = append(list, all[id])
			}
			data, err := json.MarshalIndent(list, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("%-12s %-10s %-8s %-8s %-14s %s\n",
			"ID", "TIER", "QUALITY", "STATUS", "COST($/1M)", "SPECIALTIES")
		for _, id := range ids {
			p := all[id]
			if !p.Enabled {
				continue
			}
			fmt.Printf("%-12s %-10s %-8.2f %-8s %6.2f/%-6.2f %s\n",
				p.ID, p.Tier, p.Quality(), p.Health.Status,
				p.Cost.InputPer1M, p.Cost.OutputPer1M,
				strings.Join(p.Capabilities.Specialties, ","))
		}
		return nil
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersAsJSON, "json", false, "print providers as JSON")

	RootCmd.AddCommand(providersCmd)
}
