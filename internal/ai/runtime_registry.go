package ai

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration
	// Free tier
	Attempts     int
	Delay        time.Duration
	RetryTimeout time.Duration
	Logger       zerolog.Logger
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory. Tests use it to
// point a provider at a local server.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[NormalizeProvider(name)]; ok {
		return f(cfg), true
	}
	return nil, false
}

// Providers lists registered external providers.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterRuntime(ProviderOpenAI, func(c RuntimeConfig) Runtime {
		return NewClient(c.APIKey, c.HTTPTimeout, c.BaseURL)
	})
	RegisterRuntime(ProviderAnthropic, func(c RuntimeConfig) Runtime {
		return NewAnthropicClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.BaseURL)
	})
	RegisterRuntime(ProviderFreeLLM, func(c RuntimeConfig) Runtime {
		return NewFreeClient(FreeConfig{
			Token:        c.APIKey,
			BaseURL:      c.BaseURL,
			HTTPTimeout:  c.HTTPTimeout,
			Attempts:     c.Attempts,
			Delay:        c.Delay,
			RetryTimeout: c.RetryTimeout,
			Logger:       c.Logger,
		})
	})
}
