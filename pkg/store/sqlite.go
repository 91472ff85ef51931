package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/liliang-cn/federation-go/pkg/learning"
	"github.com/liliang-cn/federation-go/pkg/registry"
)

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and initializes) a SQLite-backed store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			enabled BOOLEAN NOT NULL,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS health_checks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider_id TEXT NOT NULL,
			status TEXT NOT NULL,
			avg_latency_ms REAL DEFAULT 0,
			error_rate_24h REAL DEFAULT 0,
			consecutive_failures INTEGER DEFAULT 0,
			circuit_open BOOLEAN DEFAULT 0,
			checked_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS routing_outcomes (
			outcome_id TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL,
			task_id TEXT,
			status TEXT NOT NULL,
			task_intent TEXT,
			actual_cost REAL DEFAULT 0,
			actual_latency_ms INTEGER DEFAULT 0,
			input_tokens INTEGER DEFAULT 0,
			output_tokens INTEGER DEFAULT 0,
			error_type TEXT,
			data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_checks_provider_checked
			ON health_checks(provider_id, checked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_outcomes_provider_created
			ON routing_outcomes(provider_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SaveProvider upserts a provider record. The full record is stored as JSON
// alongside a few queryable columns.
func (s *SQLiteStore) SaveProvider(ctx context.Context, p *registry.Provider) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal provider %s: %w", p.ID, err)
	}

	query := `INSERT INTO providers (id, tier, enabled, data, updated_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
				tier = excluded.tier,
				enabled = excluded.enabled,
				data = excluded.data,
				updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query, p.ID, string(p.Tier), p.Enabled, string(data), p.UpdatedAt)
	return err
}

// GetProvider retrieves a provider by id.
func (s *SQLiteStore) GetProvider(ctx context.Context, id string) (*registry.Provider, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM providers WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var p registry.Provider
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider %s: %w", id, err)
	}
	return &p, nil
}

// GetAllProviders retrieves every stored provider keyed by id.
func (s *SQLiteStore) GetAllProviders(ctx context.Context) (map[string]*registry.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM providers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*registry.Provider)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var p registry.Provider
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provider %s: %w", id, err)
		}
		out[id] = &p
	}
	return out, rows.Err()
}

// SaveHealth appends a health-history entry.
func (s *SQLiteStore) SaveHealth(ctx context.Context, providerID string, h registry.Health) error {
	checkedAt := h.LastChecked
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}

	query := `INSERT INTO health_checks
			  (provider_id, status, avg_latency_ms, error_rate_24h, consecutive_failures, circuit_open, checked_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		providerID, string(h.Status), h.AvgLatencyMS, h.ErrorRate24h,
		h.ConsecutiveFailures, h.CircuitOpen, checkedAt)
	return err
}

// GetHealthHistory returns the most recent health entries, newest first.
func (s *SQLiteStore) GetHealthHistory(ctx context.Context, providerID string, limit int) ([]HealthRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT status, avg_latency_ms, error_rate_24h, consecutive_failures, circuit_open, checked_at
			  FROM health_checks
			  WHERE provider_id = ?
			  ORDER BY checked_at DESC
			  LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HealthRecord
	for rows.Next() {
		rec := HealthRecord{ProviderID: providerID}
		var status string
		if err := rows.Scan(&status, &rec.Health.AvgLatencyMS, &rec.Health.ErrorRate24h,
			&rec.Health.ConsecutiveFailures, &rec.Health.CircuitOpen, &rec.CheckedAt); err != nil {
			return nil, err
		}
		rec.Health.Status = registry.Status(status)
		rec.Health.LastChecked = rec.CheckedAt
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveOutcome appends a routing outcome.
func (s *SQLiteStore) SaveOutcome(ctx context.Context, o *learning.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome %s: %w", o.OutcomeID, err)
	}

	createdAt := o.CompletedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT OR REPLACE INTO routing_outcomes
			  (outcome_id, provider_id, task_id, status, task_intent, actual_cost,
			   actual_latency_ms, input_tokens, output_tokens, error_type, data, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		o.OutcomeID, o.ProviderID, o.TaskID, string(o.Status), o.TaskIntent,
		o.ActualCost, o.ActualLatencyMS, o.InputTokens, o.OutputTokens,
		o.ErrorType, string(data), createdAt)
	return err
}

// GetRoutingStats aggregates outcomes for a provider over the last N days.
// Nil when no outcomes fall in the window.
func (s *SQLiteStore) GetRoutingStats(ctx context.Context, providerID string, days int) (*RoutingStats, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)

	query := `SELECT
				COUNT(*),
				COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN status IN ('failure', 'error', 'timeout') THEN 1 ELSE 0 END), 0),
				COALESCE(SUM(actual_cost), 0),
				COALESCE(AVG(actual_latency_ms), 0)
			  FROM routing_outcomes
			  WHERE provider_id = ? AND created_at >= ?`

	stats := &RoutingStats{ProviderID: providerID}
	err := s.db.QueryRowContext(ctx, query, providerID, since).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests, &stats.FailedRequests,
		&stats.TotalCost, &stats.AvgLatencyMS)
	if err != nil {
		return nil, err
	}
	if stats.TotalRequests == 0 {
		return nil, nil
	}
	return stats, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
