package learning

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

// fixedSource feeds math/rand a predetermined stream.
type fixedSource struct {
	vals []int64
	i    int
}

func (s *fixedSource) Int63() int64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func (s *fixedSource) Seed(int64) {}

func bare(id string) *registry.Provider {
	return &registry.Provider{ID: id, Name: id}
}

func exploitRand() *rand.Rand {
	// seed 1 keeps the first draws well above the exploration rate
	return rand.New(rand.NewSource(1))
}

func TestSelectInsufficientData(t *testing.T) {
	opt := NewOptimizer(NewTracker(), WithRand(exploitRand()))
	candidates := []*registry.Provider{bare("a"), bare("b"), bare("c")}
	base := map[string]float64{"a": 0.7, "b": 0.9, "c": 0.8}

	p, method := opt.Select(candidates, "analysis", base)
	require.NotNil(t, p)
	assert.Equal(t, "b", p.ID)
	assert.Equal(t, "insufficient_data_for_optimization", method)
}

func TestSelectUCBFavorsWinner(t *testing.T) {
	opt := NewOptimizer(NewTracker(), WithRand(exploitRand()))

	for i := 0; i < 8; i++ {
		opt.RecordFeedback("a", "analysis", i < 2)
	}
	for i := 0; i < 4; i++ {
		opt.RecordFeedback("b", "analysis", true)
	}

	candidates := []*registry.Provider{bare("a"), bare("b")}
	p, method := opt.Select(candidates, "analysis", map[string]float64{"a": 0.9, "b": 0.5})
	require.NotNil(t, p)
	assert.Equal(t, "ucb_optimization", method)
	assert.Equal(t, "b", p.ID)
}

func TestSelectUntestedArmFirst(t *testing.T) {
	opt := NewOptimizer(NewTracker(), WithRand(exploitRand()))

	for i := 0; i < 12; i++ {
		opt.RecordFeedback("a", "analysis", true)
	}

	// c has zero trials and scores +Inf
	candidates := []*registry.Provider{bare("a"), bare("c")}
	p, method := opt.Select(candidates, "analysis", nil)
	require.NotNil(t, p)
	assert.Equal(t, "ucb_optimization", method)
	assert.Equal(t, "c", p.ID)
}

func TestSelectExploration(t *testing.T) {
	rng := rand.New(&fixedSource{vals: []int64{0, 0}})
	opt := NewOptimizer(NewTracker(), WithRand(rng))

	for i := 0; i < 12; i++ {
		opt.RecordFeedback("a", "analysis", true)
	}

	candidates := []*registry.Provider{bare("a"), bare("b")}
	_, method := opt.Select(candidates, "analysis", nil)
	assert.Equal(t, "exploration", method)
}

func TestSelectEmptyCandidates(t *testing.T) {
	opt := NewOptimizer(NewTracker())
	p, method := opt.Select(nil, "analysis", nil)
	assert.Nil(t, p)
	assert.Empty(t, method)
}

func TestRefreshGate(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	opt := NewOptimizer(tr, WithRand(exploitRand()), WithClock(func() time.Time { return now }))

	recordN(tr, "a", "analysis", StatusSuccess, 12)
	candidates := []*registry.Provider{bare("a")}

	opt.Select(candidates, "analysis", nil)
	assert.Equal(t, 12, opt.Stats().ByIntent["analysis"].TotalTrials)

	// new outcomes inside the refresh window are not picked up yet
	recordN(tr, "a", "analysis", StatusSuccess, 5)
	opt.Select(candidates, "analysis", nil)
	assert.Equal(t, 12, opt.Stats().ByIntent["analysis"].TotalTrials)

	now = now.Add(6 * time.Minute)
	opt.Select(candidates, "analysis", nil)
	assert.Equal(t, 17, opt.Stats().ByIntent["analysis"].TotalTrials)
}

func TestUCBScore(t *testing.T) {
	s := &pairScore{providerID: "a", intent: "x"}

	t.Run("zero trials is infinite", func(t *testing.T) {
		assert.True(t, math.IsInf(s.ucb(100, DefaultExplorationFactor), 1))
	})

	t.Run("win rate plus exploration bonus", func(t *testing.T) {
		s := &pairScore{trials: 8, successes: 2, winRate: 0.25}
		got := s.ucb(12, DefaultExplorationFactor)
		want := 0.25 + DefaultExplorationFactor*math.Sqrt(2*math.Sqrt(12)/math.Sqrt(8))
		assert.InDelta(t, want, got, 1e-9)
	})

	t.Run("more trials shrink the bonus", func(t *testing.T) {
		few := &pairScore{trials: 2, successes: 1, winRate: 0.5}
		many := &pairScore{trials: 50, successes: 25, winRate: 0.5}
		assert.Greater(t, few.ucb(100, DefaultExplorationFactor), many.ucb(100, DefaultExplorationFactor))
	})
}

func TestRecordFeedback(t *testing.T) {
	opt := NewOptimizer(NewTracker())

	opt.RecordFeedback("a", "planning", true)
	opt.RecordFeedback("a", "planning", true)
	opt.RecordFeedback("a", "planning", false)

	stats := opt.Stats()
	assert.Equal(t, 1, stats.TotalScoreEntries)
	assert.Equal(t, 3, stats.ByIntent["planning"].TotalTrials)
	assert.Equal(t, "a", stats.ByIntent["planning"].BestProvider)
}

func TestRecommendExperiments(t *testing.T) {
	opt := NewOptimizer(NewTracker())

	for i := 0; i < 12; i++ {
		opt.RecordFeedback("a", "analysis", true)
	}
	for i := 0; i < 4; i++ {
		opt.RecordFeedback("b", "analysis", true)
	}

	candidates := []*registry.Provider{bare("a"), bare("b"), bare("c")}
	experiments := opt.RecommendExperiments(candidates, "analysis")

	// a has enough samples; c (0 trials) comes before b (4 trials)
	require.Len(t, experiments, 2)
	assert.Equal(t, "c", experiments[0].ProviderID)
	assert.Equal(t, 0, experiments[0].Trials)
	assert.Equal(t, 10, experiments[0].Needed)
	assert.Equal(t, "b", experiments[1].ProviderID)
	assert.Equal(t, 6, experiments[1].Needed)
}
