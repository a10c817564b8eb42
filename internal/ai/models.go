package ai

import (
	"encoding/json"
	"os"
	"sort"
	"time"
)

// Generation defaults shared by every backend.
const (
	DefaultMaxTokens    = 1000
	DefaultTemperature  = 0.7
	DefaultFreeAttempts = 3
	DefaultFreeDelay    = 2 * time.Second
	// defaultContextTokens applies to models missing from the catalog.
	defaultContextTokens = 4096
)

// ModelInfo is catalog metadata used for defaults, context budgets and cost hints.
type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
	Description   string
}

var models = map[string]ModelInfo{
	"google/flan-t5-large": {
		Name:          "google/flan-t5-large",
		Provider:      ProviderFreeLLM,
		ContextTokens: 512,
		Description:   "FLAN-T5 Large (instruction following)",
	},
	"google/flan-t5-xl": {
		Name:          "google/flan-t5-xl",
		Provider:      ProviderFreeLLM,
		ContextTokens: 512,
		Description:   "FLAN-T5 XL (most capable, slower)",
	},
	"microsoft/DialoGPT-medium": {
		Name:          "microsoft/DialoGPT-medium",
		Provider:      ProviderFreeLLM,
		ContextTokens: 1024,
		Description:   "DialoGPT Medium (conversational)",
	},
	"microsoft/DialoGPT-large": {
		Name:          "microsoft/DialoGPT-large",
		Provider:      ProviderFreeLLM,
		ContextTokens: 1024,
		Description:   "DialoGPT Large (advanced conversational)",
	},
	"gpt-3.5-turbo": {
		Name:          "gpt-3.5-turbo",
		Provider:      ProviderOpenAI,
		ContextTokens: 16385,
		InputPerK:     0.0005,
		OutputPerK:    0.0015,
	},
	"gpt-4": {
		Name:          "gpt-4",
		Provider:      ProviderOpenAI,
		ContextTokens: 8192,
		InputPerK:     0.03,
		OutputPerK:    0.06,
	},
	"gpt-4-turbo-preview": {
		Name:          "gpt-4-turbo-preview",
		Provider:      ProviderOpenAI,
		ContextTokens: 128000,
		InputPerK:     0.01,
		OutputPerK:    0.03,
	},
	"claude-3-sonnet-20240229": {
		Name:          "claude-3-sonnet-20240229",
		Provider:      ProviderAnthropic,
		ContextTokens: 200000,
		InputPerK:     0.003,
		OutputPerK:    0.015,
	},
	"claude-3-haiku-20240307": {
		Name:          "claude-3-haiku-20240307",
		Provider:      ProviderAnthropic,
		ContextTokens: 200000,
		InputPerK:     0.00025,
		OutputPerK:    0.00125,
	},
	"claude-3-opus-20240229": {
		Name:          "claude-3-opus-20240229",
		Provider:      ProviderAnthropic,
		ContextTokens: 200000,
		InputPerK:     0.015,
		OutputPerK:    0.075,
	},
}

var defaultModels = map[string]string{
	ProviderFreeLLM:   "google/flan-t5-large",
	ProviderOpenAI:    "gpt-3.5-turbo",
	ProviderAnthropic: "claude-3-sonnet-20240229",
}

// freeCandidates is the fallback order of the free tier.
var freeCandidates = []string{
	"google/flan-t5-large",
	"google/flan-t5-xl",
	"microsoft/DialoGPT-medium",
	"microsoft/DialoGPT-large",
}

// DefaultModel returns the model used when a provider is selected without one.
func DefaultModel(provider string) string { return defaultModels[NormalizeProvider(provider)] }

// FreeCandidates returns the free-tier models in fallback order.
func FreeCandidates() []string { return append([]string(nil), freeCandidates...) }

// ContextLimit returns the context window of a model, or a conservative default.
func ContextLimit(model string) int {
	if mi, ok := LookupModel(model); ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return defaultContextTokens
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// ModelsFor lists catalog entries of a provider sorted by name; an empty provider lists all.
func ModelsFor(provider string) []ModelInfo {
	p := NormalizeProvider(provider)
	var out []ModelInfo
	for _, mi := range models {
		if p == "" || mi.Provider == p {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider == out[j].Provider {
			return out[i].Name < out[j].Name
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "gpt-4o-mini": {"Name":"gpt-4o-mini","Provider":"openai","ContextTokens":128000} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
		}
		models[k] = v
	}
}
