package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liliang-cn/federation-go/pkg/log"
)

const (
	// DefaultFailureThreshold is the consecutive failure count that opens
	// the circuit breaker.
	DefaultFailureThreshold = 5
	// DefaultCooldown is how long an open circuit blocks traffic.
	DefaultCooldown = 60 * time.Second

	// latencyAlpha is the EMA smoothing factor for health latency.
	latencyAlpha = 0.1
)

// PersistentStore is the subset of the storage contract the registry needs.
// The full contract lives in pkg/store; the registry only depends on what it
// writes. Persistence failures are logged and never block the hot path.
type PersistentStore interface {
	SaveProvider(ctx context.Context, p *Provider) error
	SaveHealth(ctx context.Context, providerID string, h Health) error
}

// HealthReport carries the result of a single health check into the registry.
// An empty Status means "derive from the error rate".
type HealthReport struct {
	Status       Status
	LatencyMS    float64
	ErrorRate24h *float64
}

type providerMap map[string]*Provider

// Registry holds the authoritative provider set in memory. The map is
// copy-on-write: readers load an immutable snapshot without locking, writers
// serialize on a mutex, clone, mutate the clone, and swap.
type Registry struct {
	mu        sync.Mutex // writers only
	providers atomic.Pointer[providerMap]

	store     PersistentStore
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore attaches a persistent backend for providers and health history.
func WithStore(s PersistentStore) Option {
	return func(r *Registry) { r.store = s }
}

// WithFailureThreshold overrides the circuit breaker threshold.
func WithFailureThreshold(n int) Option {
	return func(r *Registry) { r.threshold = n }
}

// WithCooldown overrides the circuit breaker cooldown.
func WithCooldown(d time.Duration) Option {
	return func(r *Registry) { r.cooldown = d }
}

// WithClock injects a clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		threshold: DefaultFailureThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		logger:    log.WithModule("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	empty := make(providerMap)
	r.providers.Store(&empty)
	return r
}

// NewWithDefaults creates a registry preloaded with the built-in providers.
func NewWithDefaults(opts ...Option) *Registry {
	r := New(opts...)
	m := make(providerMap)
	now := r.now()
	for id, p := range DefaultProviders() {
		cp := p.Clone()
		cp.CreatedAt = now
		cp.UpdatedAt = now
		m[id] = cp
	}
	r.providers.Store(&m)
	return r
}

func (r *Registry) snapshot() providerMap {
	return *r.providers.Load()
}

// Save upserts a provider. The stored record gets a fresh UpdatedAt and is
// pushed to the persistent backend when one is configured.
func (r *Registry) Save(ctx context.Context, p *Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}

	cp := p.Clone()
	now := r.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	r.mu.Lock()
	next := r.cloneMapLocked()
	next[cp.ID] = cp
	r.providers.Store(&next)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveProvider(ctx, cp.Clone()); err != nil {
			r.logger.Warn("failed to persist provider", "provider", cp.ID, "error", err)
		}
	}
	return nil
}

// Get returns a copy of the provider, or false when unknown.
func (r *Registry) Get(id string) (*Provider, bool) {
	r.repairExpiredCircuits()
	p, ok := r.snapshot()[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// GetAll returns a snapshot of all providers keyed by id. The snapshot is a
// deep copy and stays valid regardless of concurrent writes.
func (r *Registry) GetAll() map[string]*Provider {
	r.repairExpiredCircuits()
	snap := r.snapshot()
	out := make(map[string]*Provider, len(snap))
	for id, p := range snap {
		out[id] = p.Clone()
	}
	return out
}

// Remove deletes a provider from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.cloneMapLocked()
	delete(next, id)
	r.providers.Store(&next)
}

// UpdateHealth merges a health report into the provider record. Latency is
// smoothed with an EMA (alpha 0.1); status is taken from the report when set,
// otherwise derived from the error rate. A health-history entry is persisted.
func (r *Registry) UpdateHealth(ctx context.Context, id string, report HealthReport) error {
	r.mu.Lock()
	next := r.cloneMapLocked()
	p, ok := next[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("provider %s not found", id)
	}
	cp := p.Clone()
	h := &cp.Health

	if report.LatencyMS > 0 {
		if h.AvgLatencyMS == 0 {
			h.AvgLatencyMS = report.LatencyMS
		} else {
			h.AvgLatencyMS = latencyAlpha*report.LatencyMS + (1-latencyAlpha)*h.AvgLatencyMS
		}
	}
	if report.ErrorRate24h != nil {
		h.ErrorRate24h = *report.ErrorRate24h
	}
	if report.Status != "" {
		h.Status = report.Status
	} else {
		h.Status = deriveStatus(h.ErrorRate24h)
	}
	h.LastChecked = r.now()
	cp.UpdatedAt = h.LastChecked

	next[id] = cp
	r.providers.Store(&next)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveHealth(ctx, id, cp.Health); err != nil {
			r.logger.Warn("failed to persist health entry", "provider", id, "error", err)
		}
	}
	return nil
}

// RecordFailure increments the consecutive failure count and opens the
// circuit breaker when the threshold is crossed.
func (r *Registry) RecordFailure(ctx context.Context, id string) {
	r.mu.Lock()
	next := r.cloneMapLocked()
	p, ok := next[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	cp := p.Clone()
	h := &cp.Health
	h.ConsecutiveFailures++
	if !h.CircuitOpen && h.ConsecutiveFailures >= r.threshold {
		h.CircuitOpen = true
		h.CircuitOpenUntil = r.now().Add(r.cooldown)
		r.logger.Warn("circuit opened",
			"provider", id,
			"failures", h.ConsecutiveFailures,
			"until", h.CircuitOpenUntil)
	}
	next[id] = cp
	r.providers.Store(&next)
	r.mu.Unlock()

	r.persistHealth(ctx, id, cp.Health)
}

// RecordSuccess resets the consecutive failure count. An open circuit stays
// open until its cooldown elapses.
func (r *Registry) RecordSuccess(ctx context.Context, id string) {
	r.mu.Lock()
	next := r.cloneMapLocked()
	p, ok := next[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	cp := p.Clone()
	cp.Health.ConsecutiveFailures = 0
	next[id] = cp
	r.providers.Store(&next)
	r.mu.Unlock()

	r.persistHealth(ctx, id, cp.Health)
}

// repairExpiredCircuits closes circuits whose cooldown has elapsed, resetting
// the failure count. Cheap when nothing expired: a lock-free scan.
func (r *Registry) repairExpiredCircuits() {
	now := r.now()
	expired := false
	for _, p := range r.snapshot() {
		if p.Health.CircuitOpen && !now.Before(p.Health.CircuitOpenUntil) {
			expired = true
			break
		}
	}
	if !expired {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.cloneMapLocked()
	for id, p := range next {
		if p.Health.CircuitOpen && !now.Before(p.Health.CircuitOpenUntil) {
			cp := p.Clone()
			cp.Health.CircuitOpen = false
			cp.Health.CircuitOpenUntil = time.Time{}
			cp.Health.ConsecutiveFailures = 0
			next[id] = cp
			r.logger.Info("circuit closed", "provider", id)
		}
	}
	r.providers.Store(&next)
}

// cloneMapLocked copies the current map so the swap never mutates a snapshot
// a reader may still hold. Callers must hold r.mu.
func (r *Registry) cloneMapLocked() providerMap {
	cur := r.snapshot()
	next := make(providerMap, len(cur)+1)
	for id, p := range cur {
		next[id] = p
	}
	return next
}

func (r *Registry) persistHealth(ctx context.Context, id string, h Health) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveHealth(ctx, id, h); err != nil {
		r.logger.Warn("failed to persist health entry", "provider", id, "error", err)
	}
}

func deriveStatus(errorRate float64) Status {
	switch {
	case errorRate >= 0.5:
		return StatusUnhealthy
	case errorRate >= 0.2:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
