package registry

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/federation-go/pkg/log"
)

// HealthProbe performs a single health check against a provider. Probes are
// typically backed by the provider's adapter.
type HealthProbe func(ctx context.Context, p *Provider) (HealthReport, error)

// Monitor periodically sweeps every enabled provider with a health probe and
// feeds the results back into the registry, driving status transitions and
// the circuit breaker.
type Monitor struct {
	registry    *Registry
	probe       HealthProbe
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewMonitor creates a health monitor. A non-positive interval defaults to
// 30 seconds.
func NewMonitor(reg *Registry, probe HealthProbe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		registry:    reg,
		probe:       probe,
		interval:    interval,
		concurrency: 4,
		logger:      log.WithModule("health-monitor"),
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.logger.Warn("health sweep aborted", "error", err)
			}
		}
	}
}

// Sweep probes all enabled providers concurrently. Probe failures count as
// provider failures; they do not abort the sweep.
func (m *Monitor) Sweep(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, p := range m.registry.GetAll() {
		if !p.Enabled {
			continue
		}
		p := p
		g.Go(func() error {
			report, err := m.probe(ctx, p)
			if err != nil {
				m.logger.Debug("health probe failed", "provider", p.ID, "error", err)
				m.registry.RecordFailure(ctx, p.ID)
				return m.registry.UpdateHealth(ctx, p.ID, HealthReport{Status: StatusUnhealthy})
			}
			m.registry.RecordSuccess(ctx, p.ID)
			return m.registry.UpdateHealth(ctx, p.ID, report)
		})
	}
	return g.Wait()
}
