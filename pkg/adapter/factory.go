package adapter

import (
	"context"
	"sync"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

// Factory builds and caches one adapter per provider.
type Factory struct {
	mu       sync.Mutex
	adapters map[string]Adapter
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{adapters: make(map[string]Adapter)}
}

// Get returns the adapter for a provider, building it on first use.
func (f *Factory) Get(p *registry.Provider) (Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.adapters[p.ID]; ok {
		return a, nil
	}

	a, err := NewOpenAIAdapter(p)
	if err != nil {
		return nil, err
	}
	f.adapters[p.ID] = a
	return a, nil
}

// Probe returns a registry.HealthProbe backed by the factory's adapters,
// suitable for the health monitor.
func (f *Factory) Probe() registry.HealthProbe {
	return func(ctx context.Context, p *registry.Provider) (registry.HealthReport, error) {
		a, err := f.Get(p)
		if err != nil {
			return registry.HealthReport{}, err
		}

		hs := a.HealthCheck(ctx)
		report := registry.HealthReport{
			Status:    hs.Status,
			LatencyMS: hs.LatencyMS,
		}
		if hs.Status == registry.StatusUnhealthy {
			return report, ErrProbeFailed
		}
		return report, nil
	}
}
