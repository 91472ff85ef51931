package fedroute

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/federation-go/pkg/cost"
	"github.com/liliang-cn/federation-go/pkg/learning"
	"github.com/liliang-cn/federation-go/pkg/router"
)

var (
	routeIntent       string
	routeSystemPrompt string
	routeMaxCost      float64
	routeMaxLatency   int
	routeMinQuality   float64
	routeResidency    string
	routeStreaming    bool
	routeJSONMode     bool
	routeVision       bool
	routeSOC2         bool
	routeHIPAA        bool
	routeAsJSON       bool
)

var routeCmd = &cobra.Command{
	Use:   "route [prompt]",
	Short: "Route a prompt to the best provider",
	Long: `Classify the prompt, filter providers on the given constraints, and
print the routing decision with per-criterion scores and alternatives.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	reg, err := buildRegistry(ctx, st)
	if err != nil {
		return err
	}

	tracker := learning.NewTracker(learning.WithStore(st))
	opts := []router.RouterOption{
		router.WithEstimator(cost.NewEstimator()),
	}
	if cfg.Router.LearningEnabled {
		optimizer := learning.NewOptimizer(tracker,
			learning.WithExplorationRate(cfg.Router.ExplorationRate),
			learning.WithMinSamples(cfg.Router.MinSamples),
		)
		opts = append(opts, router.WithSelector(optimizer))
	}
	rt := router.New(reg, opts...)

	task := &router.Task{
		Prompt:       strings.Join(args, " "),
		SystemPrompt: routeSystemPrompt,
		Intent:       router.Intent(routeIntent),
		TenantID:     cfg.Budget.Tenant,
		Requirements: router.Requirements{
			MaxCost:           routeMaxCost,
			MaxLatencyMS:      routeMaxLatency,
			MinQualityScore:   routeMinQuality,
			DataResidency:     routeResidency,
			StreamingRequired: routeStreaming,
			JSONModeRequired:  routeJSONMode,
			VisionRequired:    routeVision,
			SOC2Required:      routeSOC2,
			HIPAARequired:     routeHIPAA,
		},
	}

	decision, err := rt.Route(ctx, task)
	if err != nil {
		return err
	}

	if routeAsJSON {
		data, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Provider:   %s (%s)\n", decision.ProviderID, decision.Model)
	fmt.Printf("Intent:     %s\n", decision.Intent)
	fmt.Printf("Method:     %s\n", decision.SelectionMethod)
	fmt.Printf("Confidence: %.3f\n", decision.Confidence)
	fmt.Printf("Scores:     quality %.2f | speed %.2f | cost %.2f | reliability %.2f\n",
		decision.QualityScore, decision.SpeedScore, decision.CostScore, decision.ReliabilityScore)
	fmt.Printf("Estimated:  $%.4f, %dms\n", decision.EstimatedCost, decision.EstimatedLatencyMS)
	fmt.Printf("Reasoning:  %s\n", decision.Reasoning)
	if len(decision.Alternatives) > 0 {
		fmt.Println("Alternatives:")
		for _, alt := range decision.Alternatives {
			fmt.Printf("  %-12s %.3f\n", alt.ProviderID, alt.Overall)
		}
	}

	return nil
}

func init() {
	routeCmd.Flags().StringVar(&routeIntent, "intent", "", "task intent (skips classification)")
	routeCmd.Flags().StringVar(&routeSystemPrompt, "system", "", "system prompt")
	routeCmd.Flags().Float64Var(&routeMaxCost, "max-cost", 0, "maximum cost in USD for the task")
	routeCmd.Flags().IntVar(&routeMaxLatency, "max-latency", 0, "maximum average latency in milliseconds")
	routeCmd.Flags().Float64Var(&routeMinQuality, "min-quality", 0, "minimum provider quality score")
	routeCmd.Flags().StringVar(&routeResidency, "residency", "", "required data residency region")
	routeCmd.Flags().BoolVar(&routeStreaming, "streaming", false, "require streaming support")
	routeCmd.Flags().BoolVar(&routeJSONMode, "json-mode", false, "require JSON output mode support")
	routeCmd.Flags().BoolVar(&routeVision, "vision", false, "require vision support")
	routeCmd.Flags().BoolVar(&routeSOC2, "soc2", false, "require SOC 2 compliance")
	routeCmd.Flags().BoolVar(&routeHIPAA, "hipaa", false, "require HIPAA compliance")
	routeCmd.Flags().BoolVar(&routeAsJSON, "json", false, "print the decision as JSON")

	RootCmd.AddCommand(routeCmd)
}
