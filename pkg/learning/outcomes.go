// Package learning closes the routing feedback loop: it records what
// happened after each decision and uses the history to bias future
// selections.
package learning

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/federation-go/pkg/log"
)

// Status describes how a routed request ended.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusPartial   Status = "partial" // slow but correct
	StatusFailure   Status = "failure"
	StatusTimeout   Status = "timeout"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// failed reports whether the status counts against the provider.
func (s Status) failed() bool {
	return s == StatusFailure || s == StatusError || s == StatusTimeout
}

// Outcome records what happened after a routing decision.
type Outcome struct {
	OutcomeID  string `json:"outcome_id"`
	DecisionID string `json:"decision_id,omitempty"`
	TaskID     string `json:"task_id,omitempty"`

	ProviderID string `json:"provider_id"`
	Model      string `json:"model,omitempty"`

	Status Status `json:"status"`

	// Quality ratings, 0 to 1, optional.
	QualityScore     *float64 `json:"quality_score,omitempty"`
	CorrectnessScore *float64 `json:"correctness_score,omitempty"`
	HelpfulnessScore *float64 `json:"helpfulness_score,omitempty"`

	ActualCost      float64 `json:"actual_cost,omitempty"`
	ActualLatencyMS int     `json:"actual_latency_ms,omitempty"`
	InputTokens     int     `json:"input_tokens,omitempty"`
	OutputTokens    int     `json:"output_tokens,omitempty"`

	EstimatedCost      float64 `json:"estimated_cost,omitempty"`
	EstimatedLatencyMS int     `json:"estimated_latency_ms,omitempty"`
	CostDelta          float64 `json:"cost_delta,omitempty"`
	LatencyDelta       int     `json:"latency_delta,omitempty"`

	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	TaskIntent     string `json:"task_intent,omitempty"`
	TaskComplexity string `json:"task_complexity,omitempty"`

	RoutedAt    time.Time `json:"routed_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// calculateDeltas fills cost and latency deltas from the estimates.
func (o *Outcome) calculateDeltas() {
	if o.ActualCost != 0 && o.EstimatedCost != 0 {
		o.CostDelta = o.ActualCost - o.EstimatedCost
	}
	if o.ActualLatencyMS != 0 && o.EstimatedLatencyMS != 0 {
		o.LatencyDelta = o.ActualLatencyMS - o.EstimatedLatencyMS
	}
}

// Performance is the derived view of a provider's history.
type Performance struct {
	ProviderID        string   `json:"provider_id"`
	TotalRequests     int      `json:"total_requests"`
	SuccessRate       float64  `json:"success_rate"`
	ErrorRate         float64  `json:"error_rate"`
	AvgCost           float64  `json:"avg_cost"`
	AvgLatencyMS      float64  `json:"avg_latency_ms"`
	AvgQualityScore   *float64 `json:"avg_quality_score,omitempty"`
	IntentSuccessRate *float64 `json:"intent_success_rate,omitempty"`
}

// OutcomeStore persists outcomes; pkg/store implementations satisfy it.
type OutcomeStore interface {
	SaveOutcome(ctx context.Context, o *Outcome) error
}

type intentCounts struct {
	count   int
	success int
}

type providerStats struct {
	mu sync.Mutex

	totalRequests      int
	successfulRequests int
	failedRequests     int
	totalCost          float64
	totalLatencyMS     int
	qualityScores      []float64
	intents            map[string]*intentCounts
}

// Tracker is the append-only outcome log plus running per-provider
// statistics. Stat rows are independent and carry their own locks.
type Tracker struct {
	mu       sync.Mutex
	outcomes map[string]*Outcome
	stats    map[string]*providerStats

	store  OutcomeStore
	logger *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithStore attaches a persistent backend for outcomes.
func WithStore(s OutcomeStore) TrackerOption {
	return func(t *Tracker) { t.store = s }
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		outcomes: make(map[string]*Outcome),
		stats:    make(map[string]*providerStats),
		logger:   log.WithModule("outcomes"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) providerStats(id string) *providerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[id]
	if !ok {
		s = &providerStats{intents: make(map[string]*intentCounts)}
		t.stats[id] = s
	}
	return s
}

// Record ingests an outcome synchronously: deltas are computed, the log and
// statistics updated, and the outcome persisted when a store is attached.
// A missing OutcomeID is assigned.
func (t *Tracker) Record(ctx context.Context, o *Outcome) {
	if o.OutcomeID == "" {
		o.OutcomeID = uuid.NewString()
	}
	o.calculateDeltas()

	t.mu.Lock()
	t.outcomes[o.OutcomeID] = o
	t.mu.Unlock()

	s := t.providerStats(o.ProviderID)
	s.mu.Lock()
	s.totalRequests++
	if o.Status == StatusSuccess {
		s.successfulRequests++
	} else if o.Status.failed() {
		s.failedRequests++
	}
	s.totalCost += o.ActualCost
	s.totalLatencyMS += o.ActualLatencyMS
	if o.QualityScore != nil {
		s.qualityScores = append(s.qualityScores, *o.QualityScore)
	}

	intent := o.TaskIntent
	if intent == "" {
		intent = "unknown"
	}
	ic, ok := s.intents[intent]
	if !ok {
		ic = &intentCounts{}
		s.intents[intent] = ic
	}
	ic.count++
	if o.Status == StatusSuccess {
		ic.success++
	}
	s.mu.Unlock()

	if t.store != nil {
		if err := t.store.SaveOutcome(ctx, o); err != nil {
			t.logger.Warn("failed to persist outcome",
				"outcome", o.OutcomeID, "provider", o.ProviderID, "error", err)
		}
	}
}

// Performance returns the derived statistics for a provider, optionally
// narrowed to one intent. False when the provider has no history.
func (t *Tracker) Performance(providerID, intent string) (*Performance, bool) {
	t.mu.Lock()
	s, ok := t.stats[providerID]
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.totalRequests
	if total == 0 {
		return nil, false
	}

	perf := &Performance{
		ProviderID:    providerID,
		TotalRequests: total,
		SuccessRate:   float64(s.successfulRequests) / float64(total),
		ErrorRate:     float64(s.failedRequests) / float64(total),
		AvgCost:       s.totalCost / float64(total),
		AvgLatencyMS:  float64(s.totalLatencyMS) / float64(total),
	}

	if len(s.qualityScores) > 0 {
		sum := 0.0
		for _, q := range s.qualityScores {
			sum += q
		}
		avg := sum / float64(len(s.qualityScores))
		perf.AvgQualityScore = &avg
	}

	if intent != "" {
		if ic, ok := s.intents[intent]; ok && ic.count > 0 {
			rate := float64(ic.success) / float64(ic.count)
			perf.IntentSuccessRate = &rate
		}
	}

	return perf, true
}

// IntentCounts returns the raw trial and success counts for a provider and
// intent. The optimizer refreshes its bandit state from these.
func (t *Tracker) IntentCounts(providerID, intent string) (count, success int, ok bool) {
	t.mu.Lock()
	s, exists := t.stats[providerID]
	t.mu.Unlock()
	if !exists {
		return 0, 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ic, exists := s.intents[intent]
	if !exists {
		return 0, 0, false
	}
	return ic.count, ic.success, true
}

// BestForIntent returns the provider with the highest intent-specific
// success rate, requiring at least minSamples trials. Ties resolve to the
// lexicographically smaller id.
func (t *Tracker) BestForIntent(intent string, minSamples int) (string, bool) {
	t.mu.Lock()
	ids := make([]string, 0, len(t.stats))
	for id := range t.stats {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)

	best := ""
	bestRate := -1.0
	for _, id := range ids {
		count, success, ok := t.IntentCounts(id, intent)
		if !ok || count < minSamples {
			continue
		}
		rate := float64(success) / float64(count)
		if rate > bestRate {
			best = id
			bestRate = rate
		}
	}

	return best, best != ""
}

// Summary aggregates the tracker's state for reporting surfaces.
type Summary struct {
	TotalOutcomes int                     `json:"total_outcomes"`
	Providers     map[string]*Performance `json:"providers"`
}

// Stats returns a summary across all providers.
func (t *Tracker) Stats() Summary {
	t.mu.Lock()
	total := len(t.outcomes)
	ids := make([]string, 0, len(t.stats))
	for id := range t.stats {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	providers := make(map[string]*Performance, len(ids))
	for _, id := range ids {
		if perf, ok := t.Performance(id, ""); ok {
			providers[id] = perf
		}
	}

	return Summary{TotalOutcomes: total, Providers: providers}
}

// ExportJSON writes every recorded outcome to a JSON file, ordered by
// completion time.
func (t *Tracker) ExportJSON(path string) error {
	t.mu.Lock()
	outcomes := make([]*Outcome, 0, len(t.outcomes))
	for _, o := range t.outcomes {
		outcomes = append(outcomes, o)
	}
	t.mu.Unlock()

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].CompletedAt.Before(outcomes[j].CompletedAt)
	})

	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
