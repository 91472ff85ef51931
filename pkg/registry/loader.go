package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvOverridePrefix is the prefix for per-provider environment overrides,
// e.g. FEDERATION_PROVIDER_OPENAI_ENABLED=false.
const EnvOverridePrefix = "FEDERATION_PROVIDER_"

// providerSpec mirrors Provider for file parsing. Optional booleans use
// pointers so an omitted field can take a non-zero default (enabled and
// supports_streaming default to true, matching the registry conventions).
type providerSpec struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Tier      string `json:"tier" yaml:"tier"`
	Emoji     string `json:"emoji" yaml:"emoji"`
	APIBase   string `json:"api_base" yaml:"api_base"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`

	Capabilities struct {
		MaxContext        int      `json:"max_context" yaml:"max_context"`
		SupportsFunctions bool     `json:"supports_functions" yaml:"supports_functions"`
		SupportsVision    bool     `json:"supports_vision" yaml:"supports_vision"`
		SupportsJSONMode  bool     `json:"supports_json_mode" yaml:"supports_json_mode"`
		SupportsStreaming *bool    `json:"supports_streaming" yaml:"supports_streaming"`
		SupportsBatch     bool     `json:"supports_batch" yaml:"supports_batch"`
		Specialties       []string `json:"specialties" yaml:"specialties"`
		TypicalLatencyMS  int      `json:"typical_latency_ms" yaml:"typical_latency_ms"`
		ThroughputTPM     int      `json:"throughput_tpm" yaml:"throughput_tpm"`
		SOC2Compliant     bool     `json:"soc2_compliant" yaml:"soc2_compliant"`
		GDPRCompliant     bool     `json:"gdpr_compliant" yaml:"gdpr_compliant"`
		HIPAACompliant    bool     `json:"hipaa_compliant" yaml:"hipaa_compliant"`
		DataResidency     []string `json:"data_residency" yaml:"data_residency"`
	} `json:"capabilities" yaml:"capabilities"`

	Cost struct {
		InputPer1M      float64 `json:"input_per_1m" yaml:"input_per_1m"`
		OutputPer1M     float64 `json:"output_per_1m" yaml:"output_per_1m"`
		ContextCacheHit float64 `json:"context_cache_hit" yaml:"context_cache_hit"`
		BatchDiscount   float64 `json:"batch_discount" yaml:"batch_discount"`
		Currency        string  `json:"currency" yaml:"currency"`
	} `json:"cost" yaml:"cost"`

	Enabled          *bool    `json:"enabled" yaml:"enabled"`
	QualityScore     *float64 `json:"quality_score" yaml:"quality_score"`
	ReliabilityScore *float64 `json:"reliability_score" yaml:"reliability_score"`
	Models           []string `json:"models" yaml:"models"`
	DocsURL          string   `json:"docs_url" yaml:"docs_url"`
}

func (s *providerSpec) toProvider() (*Provider, error) {
	p := &Provider{
		ID:        s.ID,
		Name:      s.Name,
		Tier:      Tier(s.Tier),
		Emoji:     s.Emoji,
		APIBase:   s.APIBase,
		APIKeyEnv: s.APIKeyEnv,
		Cost: Cost{
			InputPer1M:      s.Cost.InputPer1M,
			OutputPer1M:     s.Cost.OutputPer1M,
			ContextCacheHit: s.Cost.ContextCacheHit,
			BatchDiscount:   s.Cost.BatchDiscount,
			Currency:        s.Cost.Currency,
		},
		QualityScore:     s.QualityScore,
		ReliabilityScore: s.ReliabilityScore,
		Models:           s.Models,
		DocsURL:          s.DocsURL,
		Health:           Health{Status: StatusUnknown},
	}

	p.Capabilities = Capabilities{
		MaxContext:        s.Capabilities.MaxContext,
		SupportsFunctions: s.Capabilities.SupportsFunctions,
		SupportsVision:    s.Capabilities.SupportsVision,
		SupportsJSONMode:  s.Capabilities.SupportsJSONMode,
		SupportsStreaming: true,
		SupportsBatch:     s.Capabilities.SupportsBatch,
		Specialties:       s.Capabilities.Specialties,
		TypicalLatencyMS:  s.Capabilities.TypicalLatencyMS,
		ThroughputTPM:     s.Capabilities.ThroughputTPM,
		SOC2Compliant:     s.Capabilities.SOC2Compliant,
		GDPRCompliant:     s.Capabilities.GDPRCompliant,
		HIPAACompliant:    s.Capabilities.HIPAACompliant,
		DataResidency:     s.Capabilities.DataResidency,
	}
	if s.Capabilities.SupportsStreaming != nil {
		p.Capabilities.SupportsStreaming = *s.Capabilities.SupportsStreaming
	}
	if p.Capabilities.MaxContext == 0 {
		p.Capabilities.MaxContext = 4096
	}

	if p.Name == "" && p.ID != "" {
		p.Name = strings.ToUpper(p.ID[:1]) + p.ID[1:]
	}
	if p.Tier == "" {
		p.Tier = TierFrontier
	}
	if p.Emoji == "" {
		p.Emoji = "🤖"
	}
	if p.APIKeyEnv == "" && p.ID != "" {
		p.APIKeyEnv = strings.ToUpper(p.ID) + "_API_KEY"
	}
	p.Enabled = true
	if s.Enabled != nil {
		p.Enabled = *s.Enabled
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile loads providers from a YAML or JSON file. The file may contain a
// top-level `providers` list, a bare list, or a map of id to provider.
func LoadFile(path string) (map[string]*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider config %s: %w", path, err)
	}

	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}

	var doc struct {
		Providers []*providerSpec `json:"providers" yaml:"providers"`
	}
	var specs []*providerSpec
	if err := unmarshal(data, &doc); err != nil || len(doc.Providers) == 0 {
		var list []*providerSpec
		if err := unmarshal(data, &list); err == nil && len(list) > 0 {
			specs = list
		} else {
			var byID map[string]*providerSpec
			if err := unmarshal(data, &byID); err != nil {
				return nil, fmt.Errorf("invalid provider config %s: %w", path, err)
			}
			for id, spec := range byID {
				if spec == nil {
					continue
				}
				if spec.ID == "" {
					spec.ID = id
				}
				specs = append(specs, spec)
			}
		}
	} else {
		specs = doc.Providers
	}

	providers := make(map[string]*Provider, len(specs))
	for _, spec := range specs {
		p, err := spec.toProvider()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		providers[p.ID] = p
	}
	return providers, nil
}

// LoadDir loads every provider file in a directory. providers.{yaml,yml,json}
// is read first, then individual files in name order; later files override
// earlier entries with the same id.
func LoadDir(dir string) (map[string]*Provider, error) {
	providers := make(map[string]*Provider)

	for _, name := range []string{"providers.yaml", "providers.yml", "providers.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			for id, p := range loaded {
				providers[id] = p
			}
			break
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if stem == "providers" {
			continue
		}
		if ext == ".yaml" || ext == ".yml" || ext == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		loaded, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for id, p := range loaded {
			providers[id] = p
		}
	}
	return providers, nil
}

// ApplyEnvOverrides applies FEDERATION_PROVIDER_{ID}_{KEY}=value overrides to
// the given provider set. Values are type-inferred (bool, int, float, string).
// Unknown providers and keys are ignored.
func ApplyEnvOverrides(providers map[string]*Provider) {
	for _, kv := range os.Environ() {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 || !strings.HasPrefix(kv[:eq], EnvOverridePrefix) {
			continue
		}
		key, value := kv[:eq], kv[eq+1:]

		parts := strings.SplitN(strings.ToLower(key[len(EnvOverridePrefix):]), "_", 2)
		if len(parts) != 2 {
			continue
		}
		p, ok := providers[parts[0]]
		if !ok {
			continue
		}
		applyOverride(p, parts[1], value)
	}
}

func applyOverride(p *Provider, key, raw string) {
	switch key {
	case "enabled":
		if b, ok := parseBool(raw); ok {
			p.Enabled = b
		}
	case "quality_score":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			p.QualityScore = &f
		}
	case "reliability_score":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			p.ReliabilityScore = &f
		}
	case "api_base":
		p.APIBase = raw
	case "api_key_env":
		p.APIKeyEnv = raw
	case "name":
		p.Name = raw
	case "emoji":
		p.Emoji = raw
	case "typical_latency_ms":
		if n, err := strconv.Atoi(raw); err == nil {
			p.Capabilities.TypicalLatencyMS = n
		}
	case "max_context":
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 {
			p.Capabilities.MaxContext = n
		}
	}
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}
