// Package store persists provider configuration, health history, and
// routing outcomes. Two backends are provided: an embedded SQLite store and
// a Redis store. The in-memory registry remains the hot path; everything
// here is eventual.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liliang-cn/federation-go/pkg/learning"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// HealthRecord is one persisted health-history entry.
type HealthRecord struct {
	ProviderID string          `json:"provider_id"`
	Health     registry.Health `json:"health"`
	CheckedAt  time.Time       `json:"checked_at"`
}

// RoutingStats aggregates persisted outcomes for a provider over a window.
type RoutingStats struct {
	ProviderID         string  `json:"provider_id"`
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	TotalCost          float64 `json:"total_cost"`
	AvgLatencyMS       float64 `json:"avg_latency_ms"`
}

// Store is the persistence contract. It covers what the registry writes
// (providers, health) and what the learning loop writes (outcomes).
type Store interface {
	SaveProvider(ctx context.Context, p *registry.Provider) error
	GetProvider(ctx context.Context, id string) (*registry.Provider, error)
	GetAllProviders(ctx context.Context) (map[string]*registry.Provider, error)

	SaveHealth(ctx context.Context, providerID string, h registry.Health) error
	GetHealthHistory(ctx context.Context, providerID string, limit int) ([]HealthRecord, error)

	SaveOutcome(ctx context.Context, o *learning.Outcome) error
	GetRoutingStats(ctx context.Context, providerID string, days int) (*RoutingStats, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "sqlite" or "redis".
	Backend string `mapstructure:"backend" json:"backend"`

	// Path is the SQLite database file.
	Path string `mapstructure:"path" json:"path"`

	// Addr, Password, DB configure the Redis connection.
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	DB       int    `mapstructure:"db" json:"db"`
}

// Open creates a store for the configured backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "federation.db"
		}
		return NewSQLiteStore(path)
	case "redis":
		return NewRedisStore(cfg.Addr, cfg.Password, cfg.DB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
