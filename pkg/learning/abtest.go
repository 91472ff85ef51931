package learning

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Test statuses reported by Analyze.
const (
	TestRunning  = "running"
	TestComplete = "complete"
)

// PerformanceSource resolves provider performance for test analysis.
// *Tracker satisfies it.
type PerformanceSource interface {
	Performance(providerID, intent string) (*Performance, bool)
}

// abTest holds one experiment's state. Sample counters carry their own lock.
type abTest struct {
	mu sync.Mutex

	providerA    string
	providerB    string
	trafficSplit float64
	minSamples   int
	startedAt    time.Time
	samplesA     int
	samplesB     int
}

// Analysis is the result of analyzing an experiment.
type Analysis struct {
	Status       string       `json:"status"`
	SamplesA     int          `json:"samples_a"`
	SamplesB     int          `json:"samples_b"`
	Needed       int          `json:"needed,omitempty"`
	ProviderA    string       `json:"provider_a,omitempty"`
	ProviderB    string       `json:"provider_b,omitempty"`
	PerformanceA *Performance `json:"performance_a,omitempty"`
	PerformanceB *Performance `json:"performance_b,omitempty"`
	Winner       string       `json:"winner,omitempty"`
}

// ABRunner runs A/B experiments between pairs of providers.
type ABRunner struct {
	mu    sync.Mutex
	tests map[string]*abTest

	perf PerformanceSource
	rng  *rand.Rand
	now  func() time.Time
}

// ABOption configures an ABRunner.
type ABOption func(*ABRunner)

// WithABRand injects the random source, used by tests.
func WithABRand(rng *rand.Rand) ABOption {
	return func(r *ABRunner) { r.rng = rng }
}

// WithABClock injects a clock, used by tests.
func WithABClock(now func() time.Time) ABOption {
	return func(r *ABRunner) { r.now = now }
}

// NewABRunner creates a runner that analyzes tests against the given
// performance source.
func NewABRunner(perf PerformanceSource, opts ...ABOption) *ABRunner {
	r := &ABRunner{
		tests: make(map[string]*abTest),
		perf:  perf,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartTest registers an experiment. trafficSplit is the share of traffic
// assigned to provider B.
func (r *ABRunner) StartTest(testID, providerA, providerB string, trafficSplit float64, minSamples int) error {
	if trafficSplit < 0 || trafficSplit > 1 {
		return fmt.Errorf("traffic split %v out of range [0, 1]", trafficSplit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[testID] = &abTest{
		providerA:    providerA,
		providerB:    providerB,
		trafficSplit: trafficSplit,
		minSamples:   minSamples,
		startedAt:    r.now(),
	}
	return nil
}

func (r *ABRunner) test(testID string) (*abTest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[testID]
	return t, ok
}

// Variant assigns a request to "a" or "b". False for an unknown test.
func (r *ABRunner) Variant(testID string) (string, bool) {
	t, ok := r.test(testID)
	if !ok {
		return "", false
	}

	r.mu.Lock()
	roll := r.rng.Float64()
	r.mu.Unlock()

	if roll < t.trafficSplit {
		return "b", true
	}
	return "a", true
}

// RecordSample counts one request served by a variant. Unknown tests and
// variants are ignored.
func (r *ABRunner) RecordSample(testID, variant string) {
	t, ok := r.test(testID)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch variant {
	case "a":
		t.samplesA++
	case "b":
		t.samplesB++
	}
}

// Analyze reports an experiment's state. Before minSamples total samples the
// test is running; afterwards the provider with the strictly higher success
// rate wins, with ties going to provider A. False for an unknown test.
func (r *ABRunner) Analyze(testID string) (*Analysis, bool) {
	t, ok := r.test(testID)
	if !ok {
		return nil, false
	}

	t.mu.Lock()
	samplesA, samplesB := t.samplesA, t.samplesB
	t.mu.Unlock()

	if samplesA+samplesB < t.minSamples {
		return &Analysis{
			Status:   TestRunning,
			SamplesA: samplesA,
			SamplesB: samplesB,
			Needed:   t.minSamples,
		}, true
	}

	perfA, _ := r.perf.Performance(t.providerA, "")
	perfB, _ := r.perf.Performance(t.providerB, "")

	winner := t.providerA
	if perfA != nil && perfB != nil && perfB.SuccessRate > perfA.SuccessRate {
		winner = t.providerB
	}

	return &Analysis{
		Status:       TestComplete,
		SamplesA:     samplesA,
		SamplesB:     samplesB,
		ProviderA:    t.providerA,
		ProviderB:    t.providerB,
		PerformanceA: perfA,
		PerformanceB: perfB,
		Winner:       winner,
	}, true
}
