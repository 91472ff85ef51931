package registry

import (
	"fmt"
	"math"
	"time"
)

// Tier classifies provider maturity and capability.
type Tier string

const (
	TierFrontier        Tier = "frontier"
	TierChineseFrontier Tier = "chinese"
	TierAggregator      Tier = "aggregator"
	TierCloud           Tier = "cloud"
	TierSpecialized     Tier = "specialized"
	TierOpenSource      Tier = "opensource"
	TierEmerging        Tier = "emerging"
)

// Status is the operational status of a provider.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
	StatusDisabled  Status = "disabled"
)

// Cost holds pricing information for a provider, in USD per 1M tokens.
type Cost struct {
	InputPer1M      float64 `json:"input_per_1m" yaml:"input_per_1m"`
	OutputPer1M     float64 `json:"output_per_1m" yaml:"output_per_1m"`
	ContextCacheHit float64 `json:"context_cache_hit,omitempty" yaml:"context_cache_hit,omitempty"`
	BatchDiscount   float64 `json:"batch_discount,omitempty" yaml:"batch_discount,omitempty"`
	Currency        string  `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// Estimate returns the cost in USD for a given token count, rounded to
// 4 decimal places.
func (c Cost) Estimate(inputTokens, outputTokens int) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * c.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * c.OutputPer1M
	return math.Round((inputCost+outputCost)*10000) / 10000
}

// Capabilities describes the features and constraints a provider supports.
type Capabilities struct {
	MaxContext        int  `json:"max_context" yaml:"max_context"`
	SupportsFunctions bool `json:"supports_functions" yaml:"supports_functions"`
	SupportsVision    bool `json:"supports_vision" yaml:"supports_vision"`
	SupportsJSONMode  bool `json:"supports_json_mode" yaml:"supports_json_mode"`
	SupportsStreaming bool `json:"supports_streaming" yaml:"supports_streaming"`
	SupportsBatch     bool `json:"supports_batch" yaml:"supports_batch"`

	// Specialties are strength tags like "code", "reasoning", "speed".
	Specialties []string `json:"specialties,omitempty" yaml:"specialties,omitempty"`

	TypicalLatencyMS int `json:"typical_latency_ms,omitempty" yaml:"typical_latency_ms,omitempty"`
	ThroughputTPM    int `json:"throughput_tpm,omitempty" yaml:"throughput_tpm,omitempty"`

	SOC2Compliant  bool     `json:"soc2_compliant" yaml:"soc2_compliant"`
	GDPRCompliant  bool     `json:"gdpr_compliant" yaml:"gdpr_compliant"`
	HIPAACompliant bool     `json:"hipaa_compliant" yaml:"hipaa_compliant"`
	DataResidency  []string `json:"data_residency,omitempty" yaml:"data_residency,omitempty"`
}

// HasSpecialty reports whether the provider declares the given specialty tag.
func (c Capabilities) HasSpecialty(tag string) bool {
	for _, s := range c.Specialties {
		if s == tag {
			return true
		}
	}
	return false
}

// AllowsResidency reports whether the provider can serve requests constrained
// to the given region. A provider satisfies "local" iff "local" is in its
// residency set; no further special casing.
func (c Capabilities) AllowsResidency(region string) bool {
	for _, r := range c.DataResidency {
		if r == region {
			return true
		}
	}
	return false
}

// Health holds live health metrics and circuit breaker state for a provider.
type Health struct {
	Status              Status    `json:"status" yaml:"status"`
	LastChecked         time.Time `json:"last_checked,omitempty" yaml:"last_checked,omitempty"`
	AvgLatencyMS        float64   `json:"avg_latency_ms,omitempty" yaml:"avg_latency_ms,omitempty"`
	ErrorRate24h        float64   `json:"error_rate_24h,omitempty" yaml:"error_rate_24h,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures,omitempty" yaml:"consecutive_failures,omitempty"`
	CircuitOpen         bool      `json:"circuit_open,omitempty" yaml:"circuit_open,omitempty"`
	CircuitOpenUntil    time.Time `json:"circuit_open_until,omitempty" yaml:"circuit_open_until,omitempty"`
}

// Available reports whether the provider should receive traffic at the given
// instant. An expired circuit no longer blocks traffic even before the
// registry has repaired the record.
func (h Health) Available(now time.Time) bool {
	if h.CircuitOpen && now.Before(h.CircuitOpenUntil) {
		return false
	}
	return h.Status == StatusHealthy || h.Status == StatusDegraded
}

// Provider is the complete representation of a model provider in the
// federation. It is the core record consumed by routing decisions.
type Provider struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Tier  Tier   `json:"tier" yaml:"tier"`
	Emoji string `json:"emoji,omitempty" yaml:"emoji,omitempty"`

	APIBase   string `json:"api_base" yaml:"api_base"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`

	Capabilities Capabilities `json:"capabilities" yaml:"capabilities"`
	Cost         Cost         `json:"cost" yaml:"cost"`
	Health       Health       `json:"health" yaml:"health"`

	Enabled bool `json:"enabled" yaml:"enabled"`

	// Routing score overrides; nil means use the defaults (0.8 / 0.95).
	QualityScore     *float64 `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`
	ReliabilityScore *float64 `json:"reliability_score,omitempty" yaml:"reliability_score,omitempty"`

	Models  []string `json:"models,omitempty" yaml:"models,omitempty"`
	DocsURL string   `json:"docs_url,omitempty" yaml:"docs_url,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Quality returns the configured quality score, defaulting to 0.8.
func (p *Provider) Quality() float64 {
	if p.QualityScore != nil {
		return *p.QualityScore
	}
	return 0.8
}

// Reliability returns the configured reliability score, defaulting to 0.95.
func (p *Provider) Reliability() float64 {
	if p.ReliabilityScore != nil {
		return *p.ReliabilityScore
	}
	return 0.95
}

// IsHealthy reports whether the provider is enabled and available.
func (p *Provider) IsHealthy(now time.Time) bool {
	return p.Enabled && p.Health.Available(now)
}

// Validate checks structural invariants of the provider record.
func (p *Provider) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("provider must have an id")
	}
	if p.APIBase == "" {
		return fmt.Errorf("provider %s must have an api_base", p.ID)
	}
	if p.Capabilities.MaxContext < 1 {
		return fmt.Errorf("provider %s: max_context must be >= 1", p.ID)
	}
	if p.QualityScore != nil && (*p.QualityScore < 0 || *p.QualityScore > 1) {
		return fmt.Errorf("provider %s: quality_score must be in [0,1]", p.ID)
	}
	if p.ReliabilityScore != nil && (*p.ReliabilityScore < 0 || *p.ReliabilityScore > 1) {
		return fmt.Errorf("provider %s: reliability_score must be in [0,1]", p.ID)
	}
	return nil
}

// Clone returns a deep copy of the provider. Registry snapshots hand out
// clones so callers can never mutate shared state.
func (p *Provider) Clone() *Provider {
	cp := *p
	cp.Capabilities.Specialties = append([]string(nil), p.Capabilities.Specialties...)
	cp.Capabilities.DataResidency = append([]string(nil), p.Capabilities.DataResidency...)
	cp.Models = append([]string(nil), p.Models...)
	if p.QualityScore != nil {
		v := *p.QualityScore
		cp.QualityScore = &v
	}
	if p.ReliabilityScore != nil {
		v := *p.ReliabilityScore
		cp.ReliabilityScore = &v
	}
	return &cp
}

func (p *Provider) String() string {
	return fmt.Sprintf("Provider(%s %s - %s)", p.Emoji, p.ID, p.Health.Status)
}

func scorePtr(v float64) *float64 { return &v }
