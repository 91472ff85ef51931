package learning

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/liliang-cn/federation-go/pkg/log"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

const (
	// DefaultExplorationRate is the probability of a purely random pick.
	DefaultExplorationRate = 0.05
	// DefaultMinSamples gates bandit selection until an intent has enough
	// history.
	DefaultMinSamples = 10
	// DefaultExplorationFactor is the UCB exploration constant.
	DefaultExplorationFactor = 1.414

	// refreshInterval bounds how often the score cache is rebuilt from the
	// tracker.
	refreshInterval = 5 * time.Minute
)

// TrialSource exposes the raw per-intent counts the optimizer learns from.
// *Tracker satisfies it.
type TrialSource interface {
	IntentCounts(providerID, intent string) (count, success int, ok bool)
}

type pairKey struct {
	providerID string
	intent     string
}

// pairScore is one arm of the bandit: a provider's record for an intent.
type pairScore struct {
	providerID string
	intent     string
	trials     int
	successes  int
	winRate    float64
}

func (s *pairScore) update(success bool) {
	s.trials++
	if success {
		s.successes++
	}
	s.winRate = float64(s.successes) / float64(s.trials)
}

// ucb computes the Upper Confidence Bound. Untested arms score +Inf so they
// are tried first.
func (s *pairScore) ucb(totalTrials int, factor float64) float64 {
	if s.trials == 0 {
		return math.Inf(1)
	}
	exploration := factor * math.Sqrt(2*math.Sqrt(float64(totalTrials))/math.Sqrt(float64(s.trials)))
	return s.winRate + exploration
}

// Optimizer selects providers with a multi-armed bandit over (provider,
// intent) pairs, balancing exploration against the best known arm. It plugs
// into the router as its selection strategy.
type Optimizer struct {
	source TrialSource

	explorationRate   float64
	minSamples        int
	explorationFactor float64

	mu         sync.Mutex
	scores     map[pairKey]*pairScore
	lastUpdate time.Time

	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithExplorationRate overrides the random exploration probability.
func WithExplorationRate(rate float64) OptimizerOption {
	return func(o *Optimizer) { o.explorationRate = rate }
}

// WithMinSamples overrides the per-intent sample gate.
func WithMinSamples(n int) OptimizerOption {
	return func(o *Optimizer) { o.minSamples = n }
}

// WithRand injects the random source, used by tests.
func WithRand(rng *rand.Rand) OptimizerOption {
	return func(o *Optimizer) { o.rng = rng }
}

// WithClock injects a clock, used by tests.
func WithClock(now func() time.Time) OptimizerOption {
	return func(o *Optimizer) { o.now = now }
}

// NewOptimizer creates an optimizer reading history from the given source.
func NewOptimizer(source TrialSource, opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{
		source:            source,
		explorationRate:   DefaultExplorationRate,
		minSamples:        DefaultMinSamples,
		explorationFactor: DefaultExplorationFactor,
		scores:            make(map[pairKey]*pairScore),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		now:               time.Now,
		logger:            log.WithModule("optimizer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Select picks one candidate for the intent. Until the intent has enough
// history the base scores decide; afterwards selection is epsilon-greedy
// over UCB scores. The second return value names the selection method.
func (o *Optimizer) Select(candidates []*registry.Provider, intent string, baseScores map[string]float64) (*registry.Provider, string) {
	if len(candidates) == 0 {
		return nil, ""
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.refreshLocked(candidates, intent)

	totalTrials := 0
	for key, s := range o.scores {
		if key.intent == intent {
			totalTrials += s.trials
		}
	}

	if totalTrials < o.minSamples {
		return argmaxBase(candidates, baseScores), "insufficient_data_for_optimization"
	}

	if o.rng.Float64() < o.explorationRate {
		return candidates[o.rng.Intn(len(candidates))], "exploration"
	}

	var best *registry.Provider
	bestUCB := math.Inf(-1)
	for _, p := range candidates {
		s, ok := o.scores[pairKey{p.ID, intent}]
		if !ok {
			s = &pairScore{providerID: p.ID, intent: intent}
		}
		if u := s.ucb(totalTrials, o.explorationFactor); u > bestUCB {
			best = p
			bestUCB = u
		}
	}
	if best == nil {
		return argmaxBase(candidates, baseScores), "insufficient_data_for_optimization"
	}
	return best, "ucb_optimization"
}

// argmaxBase returns the candidate with the highest base score, keeping the
// candidate order on ties.
func argmaxBase(candidates []*registry.Provider, baseScores map[string]float64) *registry.Provider {
	best := candidates[0]
	bestScore := baseScores[best.ID]
	for _, p := range candidates[1:] {
		if s := baseScores[p.ID]; s > bestScore {
			best = p
			bestScore = s
		}
	}
	return best
}

// refreshLocked pulls fresh counts from the trial source, at most once per
// refresh window. Caller holds o.mu.
func (o *Optimizer) refreshLocked(candidates []*registry.Provider, intent string) {
	now := o.now()
	if !o.lastUpdate.IsZero() && now.Sub(o.lastUpdate) < refreshInterval {
		return
	}

	for _, p := range candidates {
		key := pairKey{p.ID, intent}
		s, ok := o.scores[key]
		if !ok {
			s = &pairScore{providerID: p.ID, intent: intent}
			o.scores[key] = s
		}

		count, success, ok := o.source.IntentCounts(p.ID, intent)
		if ok && count > s.trials {
			s.trials = count
			s.successes = success
			s.winRate = float64(success) / float64(count)
		}
	}

	o.lastUpdate = now
	o.logger.Debug("refreshed bandit scores", "intent", intent, "pairs", len(o.scores))
}

// RecordFeedback updates the bandit state directly, without waiting for the
// next refresh.
func (o *Optimizer) RecordFeedback(providerID, intent string, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := pairKey{providerID, intent}
	s, ok := o.scores[key]
	if !ok {
		s = &pairScore{providerID: providerID, intent: intent}
		o.scores[key] = s
	}
	s.update(success)
}

// Experiment names a provider/intent pair that needs more trials before the
// bandit can rank it.
type Experiment struct {
	ProviderID string `json:"provider_id"`
	Intent     string `json:"intent"`
	Trials     int    `json:"trials"`
	Needed     int    `json:"needed"`
}

// RecommendExperiments returns the candidate pairs still below the minimum
// sample count for the intent, least-sampled first.
func (o *Optimizer) RecommendExperiments(candidates []*registry.Provider, intent string) []Experiment {
	o.mu.Lock()
	defer o.mu.Unlock()

	var experiments []Experiment
	for _, p := range candidates {
		trials := 0
		if s, ok := o.scores[pairKey{p.ID, intent}]; ok {
			trials = s.trials
		}
		if trials < o.minSamples {
			experiments = append(experiments, Experiment{
				ProviderID: p.ID,
				Intent:     intent,
				Trials:     trials,
				Needed:     o.minSamples - trials,
			})
		}
	}

	sort.SliceStable(experiments, func(i, j int) bool {
		return experiments[i].Trials < experiments[j].Trials
	})
	return experiments
}

// IntentStats summarizes bandit state for one intent.
type IntentStats struct {
	Providers    int    `json:"providers"`
	TotalTrials  int    `json:"total_trials"`
	BestProvider string `json:"best_provider,omitempty"`
}

// OptimizationStats reports the optimizer's configuration and per-intent
// state.
type OptimizationStats struct {
	TotalScoreEntries int                    `json:"total_score_entries"`
	ExplorationRate   float64                `json:"exploration_rate"`
	MinSamples        int                    `json:"min_samples"`
	ByIntent          map[string]IntentStats `json:"by_intent"`
}

// Stats returns a snapshot of the optimizer's state.
func (o *Optimizer) Stats() OptimizationStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	byIntent := make(map[string]IntentStats)
	for key, s := range o.scores {
		st := byIntent[key.intent]
		st.Providers++
		st.TotalTrials += s.trials
		if st.BestProvider == "" {
			st.BestProvider = s.providerID
		} else if prev, ok := o.scores[pairKey{st.BestProvider, key.intent}]; ok && s.winRate > prev.winRate {
			st.BestProvider = s.providerID
		}
		byIntent[key.intent] = st
	}

	return OptimizationStats{
		TotalScoreEntries: len(o.scores),
		ExplorationRate:   o.explorationRate,
		MinSamples:        o.minSamples,
		ByIntent:          byIntent,
	}
}
