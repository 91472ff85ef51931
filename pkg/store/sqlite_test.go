package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/federation-go/pkg/learning"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func storedProvider(id string) *registry.Provider {
	q := 0.9
	return &registry.Provider{
		ID:      id,
		Name:    id,
		Tier:    registry.TierFrontier,
		APIBase: "https://" + id + ".test/v1",
		Capabilities: registry.Capabilities{
			MaxContext:        32000,
			SupportsStreaming: true,
			Specialties:       []string{"code"},
			DataResidency:     []string{"us"},
		},
		Cost:         registry.Cost{InputPer1M: 1.0, OutputPer1M: 2.0},
		QualityScore: &q,
		Enabled:      true,
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := storedProvider("openai")
	require.NoError(t, s.SaveProvider(ctx, p))

	got, err := s.GetProvider(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Capabilities.Specialties, got.Capabilities.Specialties)
	assert.Equal(t, 0.9, got.Quality())

	t.Run("upsert overwrites", func(t *testing.T) {
		p.Name = "OpenAI (renamed)"
		require.NoError(t, s.SaveProvider(ctx, p))

		got, err := s.GetProvider(ctx, "openai")
		require.NoError(t, err)
		assert.Equal(t, "OpenAI (renamed)", got.Name)
	})

	t.Run("missing provider", func(t *testing.T) {
		_, err := s.GetProvider(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteGetAllProviders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProvider(ctx, storedProvider("a")))
	require.NoError(t, s.SaveProvider(ctx, storedProvider("b")))

	all, err := s.GetAllProviders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "a")
	assert.Contains(t, all, "b")
}

func TestSQLiteHealthHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		h := registry.Health{
			Status:       registry.StatusHealthy,
			AvgLatencyMS: float64(1000 + i),
			LastChecked:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveHealth(ctx, "openai", h))
	}

	history, err := s.GetHealthHistory(ctx, "openai", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// newest first
	assert.Equal(t, float64(1004), history[0].Health.AvgLatencyMS)
	assert.Equal(t, float64(1002), history[2].Health.AvgLatencyMS)

	t.Run("no history", func(t *testing.T) {
		history, err := s.GetHealthHistory(ctx, "nobody", 10)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestSQLiteRoutingStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	outcomes := []*learning.Outcome{
		{OutcomeID: "o1", ProviderID: "openai", Status: learning.StatusSuccess, ActualCost: 0.01, ActualLatencyMS: 1000, CompletedAt: now},
		{OutcomeID: "o2", ProviderID: "openai", Status: learning.StatusSuccess, ActualCost: 0.02, ActualLatencyMS: 2000, CompletedAt: now},
		{OutcomeID: "o3", ProviderID: "openai", Status: learning.StatusFailure, ActualCost: 0.0, ActualLatencyMS: 3000, CompletedAt: now},
		{OutcomeID: "o4", ProviderID: "openai", Status: learning.StatusPartial, ActualCost: 0.01, ActualLatencyMS: 2000, CompletedAt: now},
		// outside the window
		{OutcomeID: "o5", ProviderID: "openai", Status: learning.StatusSuccess, ActualCost: 5.0, CompletedAt: now.AddDate(0, 0, -30)},
	}
	for _, o := range outcomes {
		require.NoError(t, s.SaveOutcome(ctx, o))
	}

	stats, err := s.GetRoutingStats(ctx, "openai", 7)
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, 4, stats.TotalRequests)
	assert.Equal(t, 2, stats.SuccessfulRequests)
	assert.Equal(t, 1, stats.FailedRequests)
	assert.InDelta(t, 0.04, stats.TotalCost, 1e-9)
	assert.InDelta(t, 2000, stats.AvgLatencyMS, 1e-9)

	t.Run("no outcomes in window", func(t *testing.T) {
		stats, err := s.GetRoutingStats(ctx, "nobody", 7)
		require.NoError(t, err)
		assert.Nil(t, stats)
	})
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "etcd"})
	assert.Error(t, err)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)
}
