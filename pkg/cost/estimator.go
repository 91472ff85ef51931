// Package cost prices tasks against providers and tracks tenant spend
// against daily and monthly budgets.
package cost

import (
	"fmt"
	"math"
	"sort"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

// Comparison pairs a provider with its estimated cost for a token count.
type Comparison struct {
	Provider *registry.Provider `json:"-"`
	Cost     float64            `json:"cost"`
}

// Savings reports actual spend against a baseline.
type Savings struct {
	ActualCost        float64 `json:"actual_cost"`
	BaselineCost      float64 `json:"baseline_cost"`
	AbsoluteSavings   float64 `json:"absolute_savings"`
	PercentageSavings float64 `json:"percentage_savings"`
}

// Recommendation suggests the cheapest provider that still clears a quality
// bar, with the savings relative to the most expensive option.
type Recommendation struct {
	CheapestProvider string  `json:"cheapest_provider,omitempty"`
	CheapestCost     float64 `json:"cheapest_cost,omitempty"`
	PremiumProvider  string  `json:"premium_provider,omitempty"`
	PremiumCost      float64 `json:"premium_cost,omitempty"`
	Savings          Savings `json:"savings,omitempty"`
	Summary          string  `json:"summary"`
}

// Estimator prices requests using provider rate cards.
type Estimator struct {
	counter *Counter
}

// NewEstimator creates an estimator with the default token counter.
func NewEstimator() *Estimator {
	return &Estimator{counter: NewCounter("")}
}

// Estimate returns the cost of a request in USD, rounded to 4 decimals.
func (e *Estimator) Estimate(p *registry.Provider, inputTokens, outputTokens int) float64 {
	return p.Cost.Estimate(inputTokens, outputTokens)
}

// EstimateText prices a request from raw text. When outputText is empty the
// output is assumed to be twice the input.
func (e *Estimator) EstimateText(p *registry.Provider, inputText, outputText string) (float64, int, int) {
	inputTokens := e.counter.Count(inputText)

	var outputTokens int
	if outputText != "" {
		outputTokens = e.counter.Count(outputText)
	} else {
		outputTokens = inputTokens * 2
	}

	return e.Estimate(p, inputTokens, outputTokens), inputTokens, outputTokens
}

// Compare prices the request against each provider, cheapest first. Ties keep
// the input order.
func (e *Estimator) Compare(providers []*registry.Provider, inputTokens, outputTokens int) []Comparison {
	out := make([]Comparison, 0, len(providers))
	for _, p := range providers {
		out = append(out, Comparison{Provider: p, Cost: e.Estimate(p, inputTokens, outputTokens)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}

// Cheapest returns the lowest-cost provider, or false for an empty set.
func (e *Estimator) Cheapest(providers []*registry.Provider, inputTokens, outputTokens int) (Comparison, bool) {
	ranked := e.Compare(providers, inputTokens, outputTokens)
	if len(ranked) == 0 {
		return Comparison{}, false
	}
	return ranked[0], true
}

// ComputeSavings compares actual spend to a baseline, e.g. always routing to
// the premium provider.
func ComputeSavings(actual, baseline float64) Savings {
	absolute := baseline - actual
	percentage := 0.0
	if baseline > 0 {
		percentage = absolute / baseline * 100
	}
	return Savings{
		ActualCost:        round4(actual),
		BaselineCost:      round4(baseline),
		AbsoluteSavings:   round4(absolute),
		PercentageSavings: math.Round(percentage*100) / 100,
	}
}

// Recommend picks the cheapest provider whose quality clears minQuality and
// reports the savings against the most expensive candidate.
func (e *Estimator) Recommend(providers []*registry.Provider, inputTokens, outputTokens int, minQuality float64) Recommendation {
	ranked := e.Compare(providers, inputTokens, outputTokens)
	if len(ranked) == 0 {
		return Recommendation{Summary: "No providers available"}
	}

	var qualified []Comparison
	for _, c := range ranked {
		if c.Provider.Quality() >= minQuality {
			qualified = append(qualified, c)
		}
	}
	if len(qualified) == 0 {
		return Recommendation{
			Summary:          "No providers meet quality threshold",
			CheapestProvider: ranked[0].Provider.ID,
		}
	}

	cheapest := qualified[0]
	premium := ranked[len(ranked)-1]
	savings := ComputeSavings(cheapest.Cost, premium.Cost)

	return Recommendation{
		CheapestProvider: cheapest.Provider.ID,
		CheapestCost:     round4(cheapest.Cost),
		PremiumProvider:  premium.Provider.ID,
		PremiumCost:      round4(premium.Cost),
		Savings:          savings,
		Summary: fmt.Sprintf("Use %s to save %.0f%%",
			cheapest.Provider.Name, savings.PercentageSavings),
	}
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
