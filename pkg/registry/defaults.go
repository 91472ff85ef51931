package registry

// DefaultProviders returns the built-in provider set. It covers the common
// deployment shape (two frontier vendors, a cost-efficient alternative, a
// low-latency aggregator, and a local fallback) and can be replaced or
// extended by file configuration.
func DefaultProviders() map[string]*Provider {
	providers := []*Provider{
		{
			ID:        "openai",
			Name:      "OpenAI",
			Tier:      TierFrontier,
			Emoji:     "🅾️",
			APIBase:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Capabilities: Capabilities{
				MaxContext:        128_000,
				SupportsFunctions: true,
				SupportsVision:    true,
				SupportsJSONMode:  true,
				SupportsStreaming: true,
				Specialties:       []string{"code", "reasoning", "multimodal"},
				TypicalLatencyMS:  1200,
				SOC2Compliant:     true,
				DataResidency:     []string{"us"},
			},
			Cost:             Cost{InputPer1M: 2.50, OutputPer1M: 10.00},
			QualityScore:     scorePtr(0.95),
			ReliabilityScore: scorePtr(0.99),
			Models:           []string{"gpt-4o", "gpt-4o-mini", "o1", "o3-mini"},
			Enabled:          true,
			Health:           Health{Status: StatusHealthy},
		},
		{
			ID:        "anthropic",
			Name:      "Anthropic",
			Tier:      TierFrontier,
			Emoji:     "🅰️",
			APIBase:   "https://api.anthropic.com/v1",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Capabilities: Capabilities{
				MaxContext:        200_000,
				SupportsFunctions: true,
				SupportsVision:    true,
				SupportsJSONMode:  true,
				SupportsStreaming: true,
				Specialties:       []string{"analysis", "documentation", "safety"},
				TypicalLatencyMS:  1500,
				SOC2Compliant:     true,
				DataResidency:     []string{"us"},
			},
			Cost:             Cost{InputPer1M: 3.00, OutputPer1M: 15.00},
			QualityScore:     scorePtr(0.96),
			ReliabilityScore: scorePtr(0.98),
			Models:           []string{"claude-3-5-sonnet", "claude-3-opus", "claude-3-haiku"},
			Enabled:          true,
			Health:           Health{Status: StatusHealthy},
		},
		{
			ID:        "deepseek",
			Name:      "DeepSeek",
			Tier:      TierChineseFrontier,
			Emoji:     "🐋",
			APIBase:   "https://api.deepseek.com",
			APIKeyEnv: "DEEPSEEK_API_KEY",
			Capabilities: Capabilities{
				MaxContext:        64_000,
				SupportsFunctions: true,
				SupportsJSONMode:  true,
				SupportsStreaming: true,
				Specialties:       []string{"code", "reasoning", "cost_efficient"},
				TypicalLatencyMS:  2100,
				DataResidency:     []string{"apac"},
			},
			Cost:             Cost{InputPer1M: 0.14, OutputPer1M: 0.28},
			QualityScore:     scorePtr(0.88),
			ReliabilityScore: scorePtr(0.95),
			Models:           []string{"deepseek-chat", "deepseek-coder", "deepseek-reasoner"},
			Enabled:          true,
			Health:           Health{Status: StatusHealthy},
		},
		{
			ID:        "groq",
			Name:      "Groq",
			Tier:      TierAggregator,
			Emoji:     "⚡",
			APIBase:   "https://api.groq.com/openai/v1",
			APIKeyEnv: "GROQ_API_KEY",
			Capabilities: Capabilities{
				MaxContext:        128_000,
				SupportsFunctions: true,
				SupportsJSONMode:  true,
				SupportsStreaming: true,
				Specialties:       []string{"speed", "throughput"},
				TypicalLatencyMS:  300,
				ThroughputTPM:     1_000_000,
				DataResidency:     []string{"us"},
			},
			Cost:             Cost{InputPer1M: 0.59, OutputPer1M: 0.79},
			QualityScore:     scorePtr(0.85),
			ReliabilityScore: scorePtr(0.94),
			Models:           []string{"llama-3.1-70b", "llama-3.1-8b", "mixtral-8x7b"},
			Enabled:          true,
			Health:           Health{Status: StatusHealthy},
		},
		{
			ID:        "ollama",
			Name:      "Ollama (Local)",
			Tier:      TierOpenSource,
			Emoji:     "🏠",
			APIBase:   "http://localhost:11434/v1",
			APIKeyEnv: "",
			Capabilities: Capabilities{
				MaxContext:        128_000,
				SupportsStreaming: true,
				Specialties:       []string{"privacy", "offline", "zero_cost"},
				TypicalLatencyMS:  100,
				DataResidency:     []string{"local"},
			},
			Cost:             Cost{InputPer1M: 0, OutputPer1M: 0},
			QualityScore:     scorePtr(0.80),
			ReliabilityScore: scorePtr(0.99),
			Models:           []string{"llama3.2", "mistral", "qwen2.5"},
			Enabled:          true,
			Health:           Health{Status: StatusHealthy},
		},
	}

	out := make(map[string]*Provider, len(providers))
	for _, p := range providers {
		out[p.ID] = p
	}
	return out
}
