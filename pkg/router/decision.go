package router

import (
	"math"
	"time"
)

// AlternativeScore summarizes a runner-up candidate in a routing decision.
type AlternativeScore struct {
	ProviderID  string  `json:"provider_id"`
	Quality     float64 `json:"quality"`
	Speed       float64 `json:"speed"`
	Cost        float64 `json:"cost"`
	Reliability float64 `json:"reliability"`
	Overall     float64 `json:"overall"`
}

// Decision is the output of the routing engine: the selected provider plus
// the scores, estimates, and reasoning behind the choice.
type Decision struct {
	ProviderID string `json:"provider_id"`
	Model      string `json:"model,omitempty"`

	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`

	QualityScore     float64 `json:"quality_score,omitempty"`
	SpeedScore       float64 `json:"speed_score,omitempty"`
	CostScore        float64 `json:"cost_score,omitempty"`
	ReliabilityScore float64 `json:"reliability_score,omitempty"`
	OverallScore     float64 `json:"overall_score,omitempty"`

	Alternatives []AlternativeScore `json:"alternatives,omitempty"`

	EstimatedCost      float64 `json:"estimated_cost"`
	EstimatedLatencyMS int     `json:"estimated_latency_ms"`

	DecisionTimeMS int       `json:"decision_time_ms,omitempty"`
	RoutedAt       time.Time `json:"routed_at"`

	TaskID          string `json:"task_id,omitempty"`
	Intent          Intent `json:"intent,omitempty"`
	SelectionMethod string `json:"selection_method,omitempty"`

	Executed        bool `json:"executed,omitempty"`
	OutcomeRecorded bool `json:"outcome_recorded,omitempty"`
}

// IsFallback reports whether this decision came from the fallback path
// rather than scoring.
func (d *Decision) IsFallback() bool { return d.Confidence == 0 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
