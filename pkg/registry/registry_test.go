package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(id string) *Provider {
	return &Provider{
		ID:      id,
		Name:    id,
		Tier:    TierFrontier,
		APIBase: "https://api.example.com/v1",
		Capabilities: Capabilities{
			MaxContext:        8192,
			SupportsStreaming: true,
		},
		Cost:    Cost{InputPer1M: 1.0, OutputPer1M: 2.0},
		Enabled: true,
		Health:  Health{Status: StatusHealthy},
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	reg := New()
	p := testProvider("openai")
	p.Capabilities.Specialties = []string{"code", "reasoning"}
	p.QualityScore = scorePtr(0.95)

	require.NoError(t, reg.Save(context.Background(), p))

	got, ok := reg.Get("openai")
	require.True(t, ok)
	assert.Equal(t, "openai", got.ID)
	assert.Equal(t, []string{"code", "reasoning"}, got.Capabilities.Specialties)
	assert.Equal(t, 0.95, got.Quality())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSaveRejectsInvalidProvider(t *testing.T) {
	reg := New()

	t.Run("missing id", func(t *testing.T) {
		p := testProvider("")
		assert.Error(t, reg.Save(context.Background(), p))
	})

	t.Run("zero context window", func(t *testing.T) {
		p := testProvider("x")
		p.Capabilities.MaxContext = 0
		assert.Error(t, reg.Save(context.Background(), p))
	})

	t.Run("score out of range", func(t *testing.T) {
		p := testProvider("x")
		p.QualityScore = scorePtr(1.5)
		assert.Error(t, reg.Save(context.Background(), p))
	})
}

func TestGetAllReturnsIsolatedSnapshot(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Save(context.Background(), testProvider("a")))

	snap := reg.GetAll()
	snap["a"].Enabled = false
	snap["a"].Capabilities.Specialties = append(snap["a"].Capabilities.Specialties, "mutated")

	fresh, ok := reg.Get("a")
	require.True(t, ok)
	assert.True(t, fresh.Enabled)
	assert.Empty(t, fresh.Capabilities.Specialties)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	reg := NewWithDefaults()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			reg.RecordFailure(ctx, "openai")
			reg.RecordSuccess(ctx, "openai")
		}
	}()

	for i := 0; i < 200; i++ {
		snap := reg.GetAll()
		assert.NotEmpty(t, snap)
		_, _ = reg.Get("groq")
	}
	<-done
}

func TestCircuitOpensAtThreshold(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	reg := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, testProvider("flaky")))

	for i := 0; i < 4; i++ {
		reg.RecordFailure(ctx, "flaky")
	}
	p, _ := reg.Get("flaky")
	assert.False(t, p.Health.CircuitOpen)
	assert.Equal(t, 4, p.Health.ConsecutiveFailures)
	assert.True(t, p.IsHealthy(now))

	// fifth failure crosses the threshold
	reg.RecordFailure(ctx, "flaky")
	p, _ = reg.Get("flaky")
	assert.True(t, p.Health.CircuitOpen)
	assert.Equal(t, now.Add(60*time.Second), p.Health.CircuitOpenUntil)
	assert.False(t, p.IsHealthy(now))
}

func TestCircuitStaysOpenOnSuccessUntilCooldown(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	reg := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, testProvider("flaky")))

	for i := 0; i < 5; i++ {
		reg.RecordFailure(ctx, "flaky")
	}
	reg.RecordSuccess(ctx, "flaky")

	p, _ := reg.Get("flaky")
	assert.True(t, p.Health.CircuitOpen)
	assert.False(t, p.IsHealthy(now.Add(30*time.Second)))
}

func TestCircuitClosesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	reg := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, testProvider("flaky")))

	for i := 0; i < 5; i++ {
		reg.RecordFailure(ctx, "flaky")
	}

	now = now.Add(61 * time.Second)
	p, _ := reg.Get("flaky")
	assert.False(t, p.Health.CircuitOpen)
	assert.Equal(t, 0, p.Health.ConsecutiveFailures)
	assert.True(t, p.IsHealthy(now))
}

func TestUpdateHealthLatencyEMA(t *testing.T) {
	reg := New()
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, testProvider("p")))

	require.NoError(t, reg.UpdateHealth(ctx, "p", HealthReport{LatencyMS: 1000}))
	p, _ := reg.Get("p")
	assert.InDelta(t, 1000, p.Health.AvgLatencyMS, 0.001)

	require.NoError(t, reg.UpdateHealth(ctx, "p", HealthReport{LatencyMS: 2000}))
	p, _ = reg.Get("p")
	// 0.1*2000 + 0.9*1000
	assert.InDelta(t, 1100, p.Health.AvgLatencyMS, 0.001)
}

func TestUpdateHealthDerivesStatusFromErrorRate(t *testing.T) {
	reg := New()
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, testProvider("p")))

	rate := 0.25
	require.NoError(t, reg.UpdateHealth(ctx, "p", HealthReport{ErrorRate24h: &rate}))
	p, _ := reg.Get("p")
	assert.Equal(t, StatusDegraded, p.Health.Status)

	rate = 0.6
	require.NoError(t, reg.UpdateHealth(ctx, "p", HealthReport{ErrorRate24h: &rate}))
	p, _ = reg.Get("p")
	assert.Equal(t, StatusUnhealthy, p.Health.Status)

	rate = 0.01
	require.NoError(t, reg.UpdateHealth(ctx, "p", HealthReport{ErrorRate24h: &rate}))
	p, _ = reg.Get("p")
	assert.Equal(t, StatusHealthy, p.Health.Status)
}

func TestUpdateHealthExplicitStatusWins(t *testing.T) {
	reg := New()
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, testProvider("p")))

	require.NoError(t, reg.UpdateHealth(ctx, "p", HealthReport{Status: StatusDegraded}))
	p, _ := reg.Get("p")
	assert.Equal(t, StatusDegraded, p.Health.Status)
}

func TestCostEstimate(t *testing.T) {
	c := Cost{InputPer1M: 2.50, OutputPer1M: 10.00}
	assert.Equal(t, 0.0033, c.Estimate(100, 300))

	t.Run("linearity", func(t *testing.T) {
		a := c.Estimate(1000, 2000)
		b := c.Estimate(3000, 4000)
		sum := c.Estimate(4000, 6000)
		assert.InDelta(t, sum, a+b, 0.0001)
	})

	t.Run("free provider", func(t *testing.T) {
		free := Cost{}
		assert.Equal(t, 0.0, free.Estimate(100000, 100000))
	})
}

func TestAvailability(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		health  Health
		enabled bool
		want    bool
	}{
		{"healthy", Health{Status: StatusHealthy}, true, true},
		{"degraded still routes", Health{Status: StatusDegraded}, true, true},
		{"unhealthy", Health{Status: StatusUnhealthy}, true, false},
		{"unknown", Health{Status: StatusUnknown}, true, false},
		{"disabled flag", Health{Status: StatusHealthy}, false, false},
		{"open circuit", Health{Status: StatusHealthy, CircuitOpen: true, CircuitOpenUntil: now.Add(time.Minute)}, true, false},
		{"expired circuit", Health{Status: StatusHealthy, CircuitOpen: true, CircuitOpenUntil: now.Add(-time.Minute)}, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testProvider("p")
			p.Health = tc.health
			p.Enabled = tc.enabled
			assert.Equal(t, tc.want, p.IsHealthy(now))
		})
	}
}
