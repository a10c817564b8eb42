package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk/internal/ai"
	cfgpkg "github.com/KaramelBytes/tabletalk/internal/config"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/dispatch"
)

var (
	cfgFile string
	debug   bool
	// HTTP/retry flags (override config if set)
	flagHTTPTimeoutSec int
	flagRetryAttempts  int
	flagRetryDelayMs   int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "tabletalk",
	Short: "Ask questions about a CSV in plain language",
	Long: `tabletalk profiles a tabular dataset, classifies your question, and answers it with a local
analysis engine. A free-tier, OpenAI or Anthropic backend can write the narrative instead;
when one fails, the local analysis is shown with a notice.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabletalk/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryAttempts, "retry-max", 0, "free-tier model attempts (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryDelayMs, "retry-delay-ms", -1, "delay between free-tier attempts in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{DefaultBackend: ai.ProviderLocal, MaxTokens: ai.DefaultMaxTokens, Temperature: ai.DefaultTemperature}
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryAttempts > 0 {
		cfg.FreeRetryAttempts = flagRetryAttempts
	}
	if f.Changed("retry-delay-ms") && flagRetryDelayMs >= 0 {
		cfg.FreeRetryDelayMs = flagRetryDelayMs
	}
	setupLogging()

	if cfg.ModelsCatalog != "" {
		m, err := ai.LoadCatalogFromJSON(cfg.ModelsCatalog)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.ModelsCatalog).Msg("models catalog not applied")
		} else {
			ai.MergeCatalog(m)
		}
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

// newDispatcher builds a dispatcher from the loaded configuration.
func newDispatcher(c *cfgpkg.Global) *dispatch.Dispatcher {
	return dispatch.New(dispatch.Config{
		HTTPTimeout:      c.HTTPTimeout(),
		FreeAttempts:     c.FreeRetryAttempts,
		FreeDelay:        c.FreeRetryDelay(),
		FreeRetryTimeout: c.FreeRetryTimeout(),
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
		BaseURLs:         c.BaseURLs(),
		Logger:           log.Logger,
	})
}

// providerConfig resolves a backend (or the configured default) with its credentials.
func providerConfig(c *cfgpkg.Global, backend, model string) dispatch.ProviderConfig {
	if backend == "" {
		backend = c.DefaultBackend
	}
	backend = ai.NormalizeProvider(backend)
	if backend == "" {
		backend = ai.ProviderLocal
	}
	if model == "" && backend != ai.ProviderLocal {
		model = c.ModelFor(backend)
	}
	return dispatch.ProviderConfig{Backend: backend, Credentials: c.CredentialsFor(backend), ModelName: model}
}

// loadOptions maps CLI ingestion flags onto dataset options.
func loadOptions(maxRows int, delimiter string) (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	if cfg != nil && cfg.MaxRows > 0 {
		opt.MaxRows = cfg.MaxRows
	}
	if maxRows >= 0 {
		opt.MaxRows = maxRows
	}
	switch delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delimiter)
	}
	return opt, nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
