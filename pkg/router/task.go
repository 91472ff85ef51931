package router

import (
	"time"
)

// Priority orders tasks in queues. Lower values run sooner.
type Priority int

const (
	PriorityCritical   Priority = 1
	PriorityHigh       Priority = 2
	PriorityNormal     Priority = 3
	PriorityLow        Priority = 4
	PriorityBackground Priority = 5
)

// Requirements holds the constraints a task imposes on provider selection.
// Hard constraints eliminate providers; the rest influence scoring.
type Requirements struct {
	// Cost constraints
	MaxCost    float64 `json:"max_cost,omitempty"`
	BudgetTier string  `json:"budget_tier,omitempty"`

	// Latency constraints
	MaxLatencyMS      int  `json:"max_latency_ms,omitempty"`
	StreamingRequired bool `json:"streaming_required,omitempty"`

	// Quality constraints
	MinQualityScore     float64  `json:"min_quality_score,omitempty"`
	SpecialtiesRequired []string `json:"specialties_required,omitempty"`

	// Context constraints
	MinContext int `json:"min_context,omitempty"`

	// Compliance constraints
	DataResidency string `json:"data_residency,omitempty"`
	SOC2Required  bool   `json:"soc2_required,omitempty"`
	GDPRRequired  bool   `json:"gdpr_required,omitempty"`
	HIPAARequired bool   `json:"hipaa_required,omitempty"`
	PIIHandling   string `json:"pii_handling,omitempty"`

	// Feature requirements
	FunctionsRequired bool `json:"functions_required,omitempty"`
	VisionRequired    bool `json:"vision_required,omitempty"`
	JSONModeRequired  bool `json:"json_mode_required,omitempty"`

	// Governance
	GovernancePolicy string `json:"governance_policy,omitempty"`
}

// Task is the primary input to the routing engine.
type Task struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`

	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Filled by the classifier when left unknown.
	Intent                Intent `json:"intent,omitempty"`
	EstimatedInputTokens  int    `json:"estimated_input_tokens,omitempty"`
	EstimatedOutputTokens int    `json:"estimated_output_tokens,omitempty"`

	Requirements Requirements `json:"requirements,omitempty"`
	Priority     Priority     `json:"priority,omitempty"`

	TenantID  string     `json:"tenant_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`

	Context map[string]any `json:"context,omitempty"`
}

// EstimateTokens returns the estimated input and output token counts.
// Explicit estimates pass through; each absent one is filled independently,
// input as chars/4 and output as input scaled by an intent-specific
// multiplier.
func (t *Task) EstimateTokens() (int, int) {
	input := t.EstimatedInputTokens
	if input <= 0 {
		input = (len(t.Prompt) + len(t.SystemPrompt)) / 4
	}

	output := t.EstimatedOutputTokens
	if output <= 0 {
		multiplier, ok := outputMultipliers[t.Intent]
		if !ok {
			multiplier = 2.0
		}
		output = int(float64(input) * multiplier)
	}

	return input, output
}
