package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabletalk/internal/ai"
	"github.com/KaramelBytes/tabletalk/internal/utils"
)

// Global configuration structure.
type Global struct {
	DefaultBackend string `mapstructure:"default_backend" yaml:"default_backend"`

	// Credentials. HF_TOKEN, OPENAI_API_KEY and ANTHROPIC_API_KEY are honored too.
	HFToken         string `mapstructure:"hf_token" yaml:"hf_token,omitempty"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key" yaml:"openai_api_key,omitempty"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key,omitempty"`

	FreeModel      string  `mapstructure:"free_model" yaml:"free_model"`
	OpenAIModel    string  `mapstructure:"openai_model" yaml:"openai_model"`
	AnthropicModel string  `mapstructure:"anthropic_model" yaml:"anthropic_model"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	// ModelsCatalog is an optional JSON file merged into the built-in model catalog.
	ModelsCatalog string `mapstructure:"models_catalog" yaml:"models_catalog,omitempty"`

	// HTTP/retry configuration
	HTTPTimeoutSec      int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	FreeRetryAttempts   int `mapstructure:"free_retry_attempts" yaml:"free_retry_attempts"`
	FreeRetryDelayMs    int `mapstructure:"free_retry_delay_ms" yaml:"free_retry_delay_ms"`
	FreeRetryTimeoutSec int `mapstructure:"free_retry_timeout_sec" yaml:"free_retry_timeout_sec"`

	// Endpoint overrides, mostly for proxies and tests.
	FreeBaseURL      string `mapstructure:"free_base_url" yaml:"free_base_url,omitempty"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url" yaml:"openai_base_url,omitempty"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url" yaml:"anthropic_base_url,omitempty"`

	// Loading
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`

	// HTTP server
	ListenAddr         string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	SessionIdleMinutes int      `mapstructure:"session_idle_minutes" yaml:"session_idle_minutes"`
	SweepSchedule      string   `mapstructure:"sweep_schedule" yaml:"sweep_schedule"`
	CORSOrigins        []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// DefaultPath returns ~/.tabletalk/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabletalk", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabletalk/config.yaml, creating the directory if necessary.
// The file may hold credentials and is written owner-only.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by callers) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABLETALK")
	v.AutomaticEnv()
	_ = v.BindEnv("hf_token", "TABLETALK_HF_TOKEN", "HF_TOKEN")
	_ = v.BindEnv("openai_api_key", "TABLETALK_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic_api_key", "TABLETALK_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	// Defaults
	v.SetDefault("default_backend", ai.ProviderLocal)
	v.SetDefault("free_model", ai.DefaultModel(ai.ProviderFreeLLM))
	v.SetDefault("openai_model", ai.DefaultModel(ai.ProviderOpenAI))
	v.SetDefault("anthropic_model", ai.DefaultModel(ai.ProviderAnthropic))
	v.SetDefault("max_tokens", ai.DefaultMaxTokens)
	v.SetDefault("temperature", ai.DefaultTemperature)
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("free_retry_attempts", ai.DefaultFreeAttempts)
	v.SetDefault("free_retry_delay_ms", int(ai.DefaultFreeDelay/time.Millisecond))
	v.SetDefault("free_retry_timeout_sec", 15)
	v.SetDefault("max_rows", 0)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("session_idle_minutes", 60)
	v.SetDefault("sweep_schedule", "@every 1m")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// A missing file is fine; a file that exists but cannot be parsed is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.DefaultBackend = ai.NormalizeProvider(c.DefaultBackend)
	return &c, nil
}

// CredentialsFor returns the configured secret of a backend, or "".
func (c *Global) CredentialsFor(backend string) string {
	switch ai.NormalizeProvider(backend) {
	case ai.ProviderFreeLLM:
		return c.HFToken
	case ai.ProviderOpenAI:
		return c.OpenAIAPIKey
	case ai.ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// ModelFor returns the configured model of a backend, falling back to the catalog default.
func (c *Global) ModelFor(backend string) string {
	var m string
	switch ai.NormalizeProvider(backend) {
	case ai.ProviderFreeLLM:
		m = c.FreeModel
	case ai.ProviderOpenAI:
		m = c.OpenAIModel
	case ai.ProviderAnthropic:
		m = c.AnthropicModel
	}
	if m == "" {
		m = ai.DefaultModel(backend)
	}
	return m
}

// BaseURLs maps providers to their configured endpoint overrides.
func (c *Global) BaseURLs() map[string]string {
	out := map[string]string{}
	for p, u := range map[string]string{
		ai.ProviderFreeLLM:   c.FreeBaseURL,
		ai.ProviderOpenAI:    c.OpenAIBaseURL,
		ai.ProviderAnthropic: c.AnthropicBaseURL,
	} {
		if u != "" {
			out[p] = u
		}
	}
	return out
}

func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *Global) FreeRetryDelay() time.Duration {
	return time.Duration(c.FreeRetryDelayMs) * time.Millisecond
}

func (c *Global) FreeRetryTimeout() time.Duration {
	return time.Duration(c.FreeRetryTimeoutSec) * time.Second
}

func (c *Global) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// Set assigns one key by its yaml name, validating the value.
func (c *Global) Set(key, val string) error {
	atoi := func(floor int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < floor {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "default_backend":
		p := ai.NormalizeProvider(val)
		switch p {
		case ai.ProviderFreeLLM, ai.ProviderOpenAI, ai.ProviderAnthropic, ai.ProviderLocal:
			c.DefaultBackend = p
		default:
			return fmt.Errorf("invalid default_backend: %s (use free_llm, openai, anthropic or local)", val)
		}
	case "hf_token":
		c.HFToken = val
	case "openai_api_key":
		c.OpenAIAPIKey = val
	case "anthropic_api_key":
		c.AnthropicAPIKey = val
	case "free_model":
		c.FreeModel = val
	case "openai_model":
		c.OpenAIModel = val
	case "anthropic_model":
		c.AnthropicModel = val
	case "models_catalog":
		c.ModelsCatalog = val
	case "max_tokens":
		c.MaxTokens, err = atoi(1)
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %v", val)
		}
		c.Temperature = f
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi(1)
	case "free_retry_attempts":
		c.FreeRetryAttempts, err = atoi(1)
	case "free_retry_delay_ms":
		c.FreeRetryDelayMs, err = atoi(0)
	case "free_retry_timeout_sec":
		c.FreeRetryTimeoutSec, err = atoi(1)
	case "free_base_url":
		c.FreeBaseURL = val
	case "openai_base_url":
		c.OpenAIBaseURL = val
	case "anthropic_base_url":
		c.AnthropicBaseURL = val
	case "max_rows":
		c.MaxRows, err = atoi(0)
	case "listen_addr":
		c.ListenAddr = val
	case "session_idle_minutes":
		c.SessionIdleMinutes, err = atoi(1)
	case "sweep_schedule":
		c.SweepSchedule = val
	case "cors_origins":
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		if val != "console" && val != "json" {
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
		c.LogFormat = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}
