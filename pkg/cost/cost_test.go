package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

func pricedProvider(id string, inPer1M, outPer1M, quality float64) *registry.Provider {
	q := quality
	return &registry.Provider{
		ID:           id,
		Name:         id,
		Cost:         registry.Cost{InputPer1M: inPer1M, OutputPer1M: outPer1M},
		QualityScore: &q,
	}
}

func TestEstimate(t *testing.T) {
	e := &Estimator{counter: &Counter{}}
	p := pricedProvider("openai", 2.50, 10.00, 0.95)

	assert.Equal(t, 0.0033, e.Estimate(p, 100, 300))

	t.Run("free provider", func(t *testing.T) {
		free := pricedProvider("ollama", 0, 0, 0.8)
		assert.Equal(t, 0.0, e.Estimate(free, 100000, 100000))
	})

	t.Run("linearity", func(t *testing.T) {
		a := e.Estimate(p, 1000, 2000)
		b := e.Estimate(p, 5000, 3000)
		assert.InDelta(t, a+b, e.Estimate(p, 6000, 5000), 0.0002)
	})
}

func TestEstimateText(t *testing.T) {
	e := &Estimator{counter: &Counter{}}
	p := pricedProvider("openai", 2.50, 10.00, 0.95)

	// 40 chars -> 10 input tokens, output assumed 2x
	cost, in, out := e.EstimateText(p, "0123456789012345678901234567890123456789", "")
	assert.Equal(t, 10, in)
	assert.Equal(t, 20, out)
	assert.Equal(t, p.Cost.Estimate(10, 20), cost)

	t.Run("explicit output text", func(t *testing.T) {
		_, in, out := e.EstimateText(p, "01234567", "0123456789012345")
		assert.Equal(t, 2, in)
		assert.Equal(t, 4, out)
	})
}

func TestCompareAndCheapest(t *testing.T) {
	e := NewEstimator()
	providers := []*registry.Provider{
		pricedProvider("openai", 2.50, 10.00, 0.95),
		pricedProvider("deepseek", 0.14, 0.28, 0.88),
		pricedProvider("groq", 0.59, 0.79, 0.85),
	}

	ranked := e.Compare(providers, 100, 300)
	require.Len(t, ranked, 3)
	assert.Equal(t, "deepseek", ranked[0].Provider.ID)
	assert.Equal(t, "groq", ranked[1].Provider.ID)
	assert.Equal(t, "openai", ranked[2].Provider.ID)

	cheapest, ok := e.Cheapest(providers, 100, 300)
	require.True(t, ok)
	assert.Equal(t, "deepseek", cheapest.Provider.ID)

	_, ok = e.Cheapest(nil, 100, 300)
	assert.False(t, ok)
}

func TestComputeSavings(t *testing.T) {
	s := ComputeSavings(0.25, 1.00)
	assert.Equal(t, 0.25, s.ActualCost)
	assert.Equal(t, 1.00, s.BaselineCost)
	assert.Equal(t, 0.75, s.AbsoluteSavings)
	assert.Equal(t, 75.0, s.PercentageSavings)

	t.Run("zero baseline", func(t *testing.T) {
		s := ComputeSavings(0.5, 0)
		assert.Equal(t, 0.0, s.PercentageSavings)
	})
}

func TestRecommend(t *testing.T) {
	e := NewEstimator()
	providers := []*registry.Provider{
		pricedProvider("openai", 2.50, 10.00, 0.95),
		pricedProvider("deepseek", 0.14, 0.28, 0.88),
		pricedProvider("groq", 0.59, 0.79, 0.85),
	}

	t.Run("cheapest meeting quality bar", func(t *testing.T) {
		rec := e.Recommend(providers, 1000, 2000, 0.87)
		assert.Equal(t, "deepseek", rec.CheapestProvider)
		assert.Equal(t, "openai", rec.PremiumProvider)
		assert.Contains(t, rec.Summary, "deepseek")
		assert.Greater(t, rec.Savings.PercentageSavings, 0.0)
	})

	t.Run("quality bar filters the cheapest", func(t *testing.T) {
		rec := e.Recommend(providers, 1000, 2000, 0.9)
		assert.Equal(t, "openai", rec.CheapestProvider)
	})

	t.Run("no provider meets the bar", func(t *testing.T) {
		rec := e.Recommend(providers, 1000, 2000, 0.99)
		assert.Contains(t, rec.Summary, "quality threshold")
	})

	t.Run("empty set", func(t *testing.T) {
		rec := e.Recommend(nil, 1000, 2000, 0.5)
		assert.Contains(t, rec.Summary, "No providers")
	})
}

func TestCounterHeuristic(t *testing.T) {
	c := &Counter{}

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("hi"))
	assert.Equal(t, 10, c.Count("0123456789012345678901234567890123456789"))
}

func TestBudgetTrackAndSpend(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	b := NewBudgetTracker(WithClock(func() time.Time { return now }))

	b.Track("acme", "openai", 1.50, time.Time{})
	b.Track("acme", "deepseek", 0.50, time.Time{})
	b.Track("acme", "openai", 2.00, now.AddDate(0, 0, -1))
	b.Track("other", "openai", 9.00, time.Time{})

	assert.Equal(t, 2.00, b.Spend("acme", PeriodDaily, ""))
	assert.Equal(t, 2.00, b.Spend("acme", PeriodDaily, "2026-08-23"))
	assert.Equal(t, 4.00, b.Spend("acme", PeriodMonthly, ""))
	assert.Equal(t, 9.00, b.Spend("other", PeriodMonthly, "2026-08"))
	assert.Equal(t, 0.0, b.Spend("missing", PeriodDaily, ""))
}

func TestBudgetDailyNeverExceedsMonthly(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	b := NewBudgetTracker(WithClock(func() time.Time { return now }))

	for i := 0; i < 10; i++ {
		b.Track("acme", "openai", 0.33, now.AddDate(0, 0, -i))
	}

	day := b.Spend("acme", PeriodDaily, "")
	month := b.Spend("acme", PeriodMonthly, "")
	assert.LessOrEqual(t, day, month)
}

func TestBudgetRetention(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	b := NewBudgetTracker(WithClock(func() time.Time { return now }))

	old := now.AddDate(0, -14, 0)
	b.Track("acme", "openai", 5.00, old)
	// a fresh write prunes expired buckets
	b.Track("acme", "openai", 1.00, time.Time{})

	assert.Equal(t, 0.0, b.Spend("acme", PeriodMonthly, old.Format("2006-01")))
	assert.Equal(t, 1.00, b.Spend("acme", PeriodMonthly, ""))
}

func TestCheckBudget(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	t.Run("under threshold", func(t *testing.T) {
		b := NewBudgetTracker(WithClock(func() time.Time { return now }))
		b.Track("acme", "openai", 1.00, time.Time{})
		assert.Empty(t, b.CheckBudget("acme", 10.00, 100.00))
	})

	t.Run("warning at 80 percent", func(t *testing.T) {
		b := NewBudgetTracker(WithClock(func() time.Time { return now }))
		b.Track("acme", "openai", 8.00, time.Time{})

		alerts := b.CheckBudget("acme", 10.00, 0)
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertWarning, alerts[0].Level)
		assert.Equal(t, PeriodDaily, alerts[0].Period)
		assert.Contains(t, alerts[0].Message, "80%")
	})

	t.Run("critical at limit", func(t *testing.T) {
		b := NewBudgetTracker(WithClock(func() time.Time { return now }))
		b.Track("acme", "openai", 12.00, time.Time{})

		alerts := b.CheckBudget("acme", 10.00, 0)
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertCritical, alerts[0].Level)
		assert.Contains(t, alerts[0].Message, "exceeded")
	})

	t.Run("both periods alert", func(t *testing.T) {
		b := NewBudgetTracker(WithClock(func() time.Time { return now }))
		b.Track("acme", "openai", 50.00, time.Time{})

		alerts := b.CheckBudget("acme", 40.00, 60.00)
		require.Len(t, alerts, 2)
		assert.Equal(t, AlertCritical, alerts[0].Level)
		assert.Equal(t, PeriodDaily, alerts[0].Period)
		assert.Equal(t, AlertWarning, alerts[1].Level)
		assert.Equal(t, PeriodMonthly, alerts[1].Period)
	})

	t.Run("zero limits are unset", func(t *testing.T) {
		b := NewBudgetTracker(WithClock(func() time.Time { return now }))
		b.Track("acme", "openai", 100.00, time.Time{})
		assert.Empty(t, b.CheckBudget("acme", 0, 0))
	})
}
