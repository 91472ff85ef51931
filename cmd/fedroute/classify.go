package fedroute

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/federation-go/pkg/router"
)

var classifySystemPrompt string

var classifyCmd = &cobra.Command{
	Use:   "classify [prompt]",
	Short: "Classify a prompt's intent without routing it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier := router.NewClassifier()
		task := &router.Task{
			Prompt:       strings.Join(args, " "),
			SystemPrompt: classifySystemPrompt,
		}

		intent, confidence := classifier.ClassifyWithConfidence(task)
		task.Intent = intent
		in, out := task.EstimateTokens()

		fmt.Printf("Intent:     %s\n", intent)
		fmt.Printf("Confidence: %.2f\n", confidence)
		fmt.Printf("Tokens:     ~%d in / ~%d out\n", in, out)
		fmt.Printf("%s\n", classifier.Explain(task))
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifySystemPrompt, "system", "", "system prompt")

	RootCmd.AddCommand(classifyCmd)
}
