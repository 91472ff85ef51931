package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/liliang-cn/federation-go/pkg/log"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

// Scoring weights. Quality dominates, then speed, with cost and reliability
// as tiebreakers.
const (
	WeightQuality     = 0.50
	WeightSpeed       = 0.30
	WeightCost        = 0.10
	WeightReliability = 0.10

	// ExplorationRate is the share of traffic routed off the top choice to
	// gather learning data.
	ExplorationRate = 0.05

	// FallbackProviderID receives traffic when no candidate survives
	// filtering.
	FallbackProviderID = "ollama"
)

// ProviderSource yields the provider set to route over. *registry.Registry
// satisfies it.
type ProviderSource interface {
	GetAll() map[string]*registry.Provider
}

// Selector picks one candidate, typically a learning-driven strategy. It
// returns the chosen provider and a label for the selection method. Returning
// nil defers to the router's default selection.
type Selector interface {
	Select(candidates []*registry.Provider, intent string, baseScores map[string]float64) (*registry.Provider, string)
}

// Estimator prices a task against a provider.
type Estimator interface {
	Estimate(p *registry.Provider, inputTokens, outputTokens int) float64
}

type costEstimator struct{}

func (costEstimator) Estimate(p *registry.Provider, in, out int) float64 {
	return p.Cost.Estimate(in, out)
}

// scoredProvider ranks a candidate across the four scoring dimensions.
type scoredProvider struct {
	provider    *registry.Provider
	quality     float64
	speed       float64
	cost        float64
	reliability float64
	overall     float64
}

func (s *scoredProvider) alternative() AlternativeScore {
	return AlternativeScore{
		ProviderID:  s.provider.ID,
		Quality:     round3(s.quality),
		Speed:       round3(s.speed),
		Cost:        round3(s.cost),
		Reliability: round3(s.reliability),
		Overall:     round3(s.overall),
	}
}

// Router is the federation routing engine. It classifies tasks, filters
// providers against hard constraints, scores the survivors, and selects one.
type Router struct {
	source     ProviderSource
	classifier *Classifier
	estimator  Estimator
	selector   Selector
	rng        *rand.Rand
	now        func() time.Time
	logger     *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithSelector installs a learning-driven selection strategy.
func WithSelector(s Selector) RouterOption {
	return func(r *Router) { r.selector = s }
}

// WithEstimator overrides the cost estimator.
func WithEstimator(e Estimator) RouterOption {
	return func(r *Router) { r.estimator = e }
}

// WithRand injects the random source, used by tests to pin exploration.
func WithRand(rng *rand.Rand) RouterOption {
	return func(r *Router) { r.rng = rng }
}

// WithNow injects a clock, used by tests.
func WithNow(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// New creates a Router over the given provider source.
func New(source ProviderSource, opts ...RouterOption) *Router {
	r := &Router{
		source:     source,
		classifier: NewClassifier(),
		estimator:  costEstimator{},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		logger:     log.WithModule("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route selects a provider for the task. It never returns an error for an
// empty candidate set; the fallback provider absorbs that case.
func (r *Router) Route(ctx context.Context, task *Task) (*Decision, error) {
	start := r.now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if task.Intent == "" || task.Intent == IntentUnknown {
		intent, confidence := r.classifier.ClassifyWithConfidence(task)
		task.Intent = intent
		r.logger.Debug("classified task",
			"task", task.ID, "intent", intent, "confidence", confidence)
	}

	candidates := r.candidates(task)
	if len(candidates) == 0 {
		r.logger.Warn("no eligible providers, using fallback", "task", task.ID)
		return r.fallbackDecision(task, "No providers available"), nil
	}

	scored := r.scoreProviders(candidates, task)
	selected, method := r.selectProvider(scored, task)

	decisionTime := int(r.now().Sub(start).Milliseconds())
	decision := r.buildDecision(selected, scored, task, decisionTime)
	decision.SelectionMethod = method

	r.logger.Info("routed task",
		"task", task.ID,
		"intent", task.Intent,
		"provider", decision.ProviderID,
		"score", round3(decision.OverallScore),
		"method", method,
		"estimated_cost", decision.EstimatedCost)

	return decision, nil
}

// Explain returns the classifier's account of a task's intent.
func (r *Router) Explain(task *Task) string {
	return r.classifier.Explain(task)
}

func (r *Router) candidates(task *Task) []*registry.Provider {
	now := r.now()
	all := r.source.GetAll()

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*registry.Provider
	for _, id := range ids {
		p := all[id]
		if !p.IsHealthy(now) {
			continue
		}
		if !r.meetsRequirements(p, task) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Router) meetsRequirements(p *registry.Provider, task *Task) bool {
	reqs := task.Requirements
	caps := p.Capabilities

	if reqs.MinContext > 0 && caps.MaxContext < reqs.MinContext {
		return false
	}

	if reqs.FunctionsRequired && !caps.SupportsFunctions {
		return false
	}
	if reqs.VisionRequired && !caps.SupportsVision {
		return false
	}
	if reqs.JSONModeRequired && !caps.SupportsJSONMode {
		return false
	}
	if reqs.StreamingRequired && !caps.SupportsStreaming {
		return false
	}

	if reqs.SOC2Required && !caps.SOC2Compliant {
		return false
	}
	if reqs.GDPRRequired && !caps.GDPRCompliant {
		return false
	}
	if reqs.HIPAARequired && !caps.HIPAACompliant {
		return false
	}

	if reqs.DataResidency != "" && !caps.AllowsResidency(reqs.DataResidency) {
		return false
	}

	if len(reqs.SpecialtiesRequired) > 0 {
		match := false
		for _, s := range reqs.SpecialtiesRequired {
			if caps.HasSpecialty(s) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if reqs.MinQualityScore > 0 && p.Quality() < reqs.MinQualityScore {
		return false
	}
	if reqs.MaxLatencyMS > 0 && caps.TypicalLatencyMS > reqs.MaxLatencyMS {
		return false
	}

	if reqs.MaxCost > 0 {
		in, out := task.EstimateTokens()
		if r.estimator.Estimate(p, in, out) > reqs.MaxCost {
			return false
		}
	}

	return true
}

func (r *Router) scoreProviders(providers []*registry.Provider, task *Task) []*scoredProvider {
	scored := make([]*scoredProvider, 0, len(providers))
	for _, p := range providers {
		s := &scoredProvider{
			provider:    p,
			quality:     qualityScore(p, task.Intent),
			speed:       speedScore(p),
			cost:        costScore(p),
			reliability: reliabilityScore(p),
		}
		s.overall = s.quality*WeightQuality +
			s.speed*WeightSpeed +
			s.cost*WeightCost +
			s.reliability*WeightReliability
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].overall > scored[j].overall
	})
	return scored
}

func qualityScore(p *registry.Provider, intent Intent) float64 {
	base := p.Quality()
	if specialty, ok := intentSpecialty[intent]; ok && p.Capabilities.HasSpecialty(specialty) {
		base += 0.05
	}
	return math.Min(1.0, base)
}

func speedScore(p *registry.Provider) float64 {
	latency := p.Capabilities.TypicalLatencyMS
	if latency == 0 {
		return 0.6
	}
	switch {
	case latency < 300:
		return 1.0
	case latency > 5000:
		return 0.3
	default:
		return 1.0 - float64(latency-300)/4700
	}
}

func costScore(p *registry.Provider) float64 {
	c := p.Cost
	avg := (c.InputPer1M + c.OutputPer1M) / 2
	switch {
	case avg == 0:
		// free local provider
		return 1.0
	case avg < 0.50:
		return 1.0
	case avg > 10.0:
		return 0.2
	default:
		// Log scale differentiates the crowded mid-range.
		return 1.0 - (math.Log10(avg)-math.Log10(0.5))/2
	}
}

func reliabilityScore(p *registry.Provider) float64 {
	base := p.Reliability()
	base -= p.Health.ErrorRate24h

	switch p.Health.Status {
	case registry.StatusDegraded:
		base -= 0.1
	case registry.StatusUnhealthy:
		base = 0.0
	}

	return math.Max(0.0, math.Min(1.0, base))
}

func (r *Router) selectProvider(scored []*scoredProvider, task *Task) (*scoredProvider, string) {
	if len(scored) == 1 {
		return scored[0], "only_candidate"
	}

	if r.selector != nil {
		candidates := make([]*registry.Provider, len(scored))
		baseScores := make(map[string]float64, len(scored))
		byID := make(map[string]*scoredProvider, len(scored))
		for i, s := range scored {
			candidates[i] = s.provider
			baseScores[s.provider.ID] = s.overall
			byID[s.provider.ID] = s
		}
		if chosen, method := r.selector.Select(candidates, string(task.Intent), baseScores); chosen != nil {
			if s, ok := byID[chosen.ID]; ok {
				return s, method
			}
		}
	}

	if r.rng.Float64() < ExplorationRate {
		topN := len(scored)
		if topN > 3 {
			topN = 3
		}
		return scored[r.rng.Intn(topN)], "exploration"
	}

	return scored[0], "best_score"
}

func (r *Router) buildDecision(selected *scoredProvider, scored []*scoredProvider, task *Task, decisionTimeMS int) *Decision {
	p := selected.provider
	in, out := task.EstimateTokens()
	estimatedCost := r.estimator.Estimate(p, in, out)

	estimatedLatency := p.Capabilities.TypicalLatencyMS
	if estimatedLatency == 0 {
		estimatedLatency = 1500
	}

	var alternatives []AlternativeScore
	for _, s := range scored {
		if s.provider.ID == p.ID {
			continue
		}
		alternatives = append(alternatives, s.alternative())
		if len(alternatives) == 3 {
			break
		}
	}

	model := ""
	if len(p.Models) > 0 {
		model = p.Models[0]
	}

	return &Decision{
		ProviderID:         p.ID,
		Model:              model,
		Confidence:         selected.overall,
		Reasoning:          r.reasoning(selected, task),
		QualityScore:       selected.quality,
		SpeedScore:         selected.speed,
		CostScore:          selected.cost,
		ReliabilityScore:   selected.reliability,
		OverallScore:       selected.overall,
		Alternatives:       alternatives,
		EstimatedCost:      estimatedCost,
		EstimatedLatencyMS: estimatedLatency,
		DecisionTimeMS:     decisionTimeMS,
		RoutedAt:           r.now(),
		TaskID:             task.ID,
		Intent:             task.Intent,
	}
}

func (r *Router) reasoning(selected *scoredProvider, task *Task) string {
	var reasons []string

	if selected.quality > 0.9 {
		reasons = append(reasons, "highest quality output")
	}
	if selected.speed > 0.8 {
		reasons = append(reasons, "low latency")
	}
	if selected.cost > 0.9 {
		reasons = append(reasons, "cost efficiency")
	}
	if selected.reliability > 0.95 {
		reasons = append(reasons, "high reliability")
	}
	if task.Intent != IntentUnknown {
		reasons = append(reasons, fmt.Sprintf("specialization in %s", task.Intent))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "best overall match")
	}

	p := selected.provider
	return fmt.Sprintf("Selected %s (%s) for %s. Quality: %.0f%%, Speed: %.0f%%, Cost: %.0f%%",
		p.Name, p.Emoji, strings.Join(reasons, ", "),
		selected.quality*100, selected.speed*100, selected.cost*100)
}

func (r *Router) fallbackDecision(task *Task, reason string) *Decision {
	return &Decision{
		ProviderID:         FallbackProviderID,
		Confidence:         0.0,
		Reasoning:          fmt.Sprintf("Fallback to local provider. %s", reason),
		EstimatedCost:      0.0,
		EstimatedLatencyMS: 100,
		RoutedAt:           r.now(),
		TaskID:             task.ID,
		Intent:             task.Intent,
		SelectionMethod:    "fallback",
	}
}
