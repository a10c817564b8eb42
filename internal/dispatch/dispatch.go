// Package dispatch answers questions through the configured backend and falls
// back to local analysis whenever that backend cannot produce an answer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/tabletalk/internal/ai"
	"github.com/KaramelBytes/tabletalk/internal/analysis"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/intent"
)

// shortReply is the length under which a free-tier answer is padded with local analysis.
const shortReply = 50

// State is a step of the dispatch state machine.
type State string

const (
	StateSelect          State = "select"
	StateAttemptExternal State = "attempt_external"
	StateSuccess         State = "success"
	StateFallback        State = "fallback"
)

// ProviderConfig selects the backend for a question. Credentials never leave the process.
type ProviderConfig struct {
	Backend     string `json:"backend"`
	Credentials string `json:"-"`
	ModelName   string `json:"model_name,omitempty"`
}

// String hides the credentials so a config can be printed or logged safely.
func (c ProviderConfig) String() string {
	set := "unset"
	if strings.TrimSpace(c.Credentials) != "" {
		set = "set"
	}
	return fmt.Sprintf("backend=%s model=%s credentials=%s", c.Backend, c.ModelName, set)
}

// Answer is the outcome of one question.
type Answer struct {
	Result      *analysis.Result `json:"result"`
	BackendUsed string           `json:"backend_used"`
	Notice      string           `json:"notice,omitempty"`
	// Usage and EstimatedCostUSD are set only for external answers that report token counts.
	Usage            *ai.Usage `json:"usage,omitempty"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd,omitempty"`
}

// Config holds the dispatcher's transport knobs.
type Config struct {
	HTTPTimeout      time.Duration
	FreeAttempts     int
	FreeDelay        time.Duration
	FreeRetryTimeout time.Duration
	MaxTokens        int
	Temperature      float64
	// BaseURLs overrides a backend's endpoint root, keyed by provider name.
	BaseURLs map[string]string
	Logger   zerolog.Logger
}

// Dispatcher routes questions to a backend. It is safe for concurrent use.
type Dispatcher struct {
	cfg Config
	log zerolog.Logger
}

// New returns a Dispatcher, filling unset knobs with defaults. A zero FreeDelay
// moves to the next free-tier candidate immediately.
func New(cfg Config) *Dispatcher {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.FreeAttempts <= 0 {
		cfg.FreeAttempts = ai.DefaultFreeAttempts
	}
	if cfg.FreeDelay < 0 {
		cfg.FreeDelay = 0
	}
	if cfg.FreeRetryTimeout <= 0 {
		cfg.FreeRetryTimeout = 15 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = ai.DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = ai.DefaultTemperature
	}
	return &Dispatcher{cfg: cfg, log: cfg.Logger}
}

// run carries one question through the state machine.
type run struct {
	question string
	ds       *dataset.Dataset
	profile  *dataset.Profile
	local    *analysis.Result
	backend  string
	model    string
	runtime  ai.Runtime
	reply    *ai.GenerateResponse
	notice   string
}

// Answer classifies question, computes the local result and, for an external
// backend, replaces the narrative with the backend's text. Backend failures
// never surface as errors: the only error is *dataset.EmptyDatasetError.
func (d *Dispatcher) Answer(ctx context.Context, question string, ds *dataset.Dataset, pc ProviderConfig) (*Answer, error) {
	return d.AnswerAs(ctx, "", question, ds, pc)
}

// AnswerAs is Answer with the intent fixed by the caller; an empty in classifies question.
func (d *Dispatcher) AnswerAs(ctx context.Context, in intent.Intent, question string, ds *dataset.Dataset, pc ProviderConfig) (*Answer, error) {
	if in == "" {
		in = intent.Classify(question)
	}
	var p *dataset.Profile
	if ds != nil {
		p, _ = dataset.NewProfile(ds)
	}
	local, err := analysis.Analyze(in, question, p, ds)
	if err != nil {
		return nil, err
	}
	r := &run{question: question, ds: ds, profile: p, local: local}

	state := StateSelect
	for {
		switch state {
		case StateSelect:
			state = d.selectBackend(r, pc)
		case StateAttemptExternal:
			state = d.attempt(ctx, r, in)
		case StateSuccess:
			return d.success(r), nil
		default:
			return &Answer{Result: r.local, BackendUsed: ai.ProviderLocal, Notice: r.notice}, nil
		}
	}
}

func (d *Dispatcher) selectBackend(r *run, pc ProviderConfig) State {
	r.backend = ai.NormalizeProvider(pc.Backend)
	if r.backend == "" || r.backend == ai.ProviderLocal {
		return StateFallback
	}
	rc := ai.RuntimeConfig{
		APIKey:       strings.TrimSpace(pc.Credentials),
		BaseURL:      d.cfg.BaseURLs[r.backend],
		HTTPTimeout:  d.cfg.HTTPTimeout,
		Attempts:     d.cfg.FreeAttempts,
		Delay:        d.cfg.FreeDelay,
		RetryTimeout: d.cfg.FreeRetryTimeout,
		Logger:       d.log,
	}
	rt, ok := ai.GetRuntime(r.backend, rc)
	if !ok {
		r.notice = "The selected backend is not supported; showing local analysis."
		d.log.Warn().Str("backend", r.backend).Str("reason", "unknown backend").Msg("falling back to local analysis")
		return StateFallback
	}
	if rc.APIKey == "" {
		r.notice = fmt.Sprintf("%s credentials are not configured; showing local analysis.", displayName(r.backend))
		d.log.Info().Str("backend", r.backend).Str("reason", "credentials not configured").Msg("falling back to local analysis")
		return StateFallback
	}
	r.runtime = rt
	r.model = strings.TrimSpace(pc.ModelName)
	if r.model == "" {
		r.model = ai.DefaultModel(r.backend)
	}
	return StateAttemptExternal
}

func (d *Dispatcher) attempt(ctx context.Context, r *run, in intent.Intent) State {
	req := buildRequest(r.backend, r.model, r.question, r.profile, r.ds, d.cfg.MaxTokens, d.cfg.Temperature)
	start := time.Now()
	resp, err := r.runtime.Generate(ctx, req)
	if err == nil && stripVisualization(resp.Text()) == "" {
		err = &ai.MalformedResponseError{Backend: r.backend, Detail: "reply held no analysis text"}
	}
	if err != nil {
		reason := failureReason(err)
		r.notice = fmt.Sprintf("%s analysis failed (%s); showing local analysis.", displayName(r.backend), reason)
		d.log.Warn().Err(err).Str("backend", r.backend).Str("model", r.model).Str("intent", string(in)).Str("reason", reason).Msg("falling back to local analysis")
		return StateFallback
	}
	d.log.Info().Str("backend", r.backend).Str("model", resp.Model).Str("intent", string(in)).Dur("took", time.Since(start)).Msg("backend answered")
	r.reply = resp
	return StateSuccess
}

// success keeps the local metrics and chart and swaps in the backend's narrative.
func (d *Dispatcher) success(r *run) *Answer {
	raw := r.reply.Text()
	res := &analysis.Result{
		Intent:    r.local.Intent,
		Narrative: []analysis.Section{{Title: attribution(r.backend, r.reply), Body: stripVisualization(raw)}},
		Metrics:   r.local.Metrics,
		Chart:     r.local.Chart,
	}
	if r.backend == ai.ProviderFreeLLM && len([]rune(raw)) < shortReply {
		for _, s := range r.local.Narrative {
			res.Narrative = append(res.Narrative, analysis.Section{Title: "Enhanced analysis: " + s.Title, Body: s.Body})
		}
	}
	ans := &Answer{Result: res, BackendUsed: r.backend}
	if u := r.reply.Usage; u.TotalTokens > 0 || u.PromptTokens > 0 {
		ans.Usage = &u
		if cost, ok := ai.EstimateCostUSD(r.model, u.PromptTokens, u.CompletionTokens); ok {
			ans.EstimatedCostUSD = cost
		}
	}
	return ans
}

// failureReason names the category of a backend failure without echoing it.
func failureReason(err error) string {
	var (
		auth      *ai.AuthError
		rate      *ai.RateLimitError
		quota     *ai.QuotaExceededError
		loading   *ai.ModelLoadingError
		notFound  *ai.ModelNotFoundError
		malformed *ai.MalformedResponseError
		down      *ai.UnreachableError
		server    *ai.ServerError
		nerr      net.Error
	)
	switch {
	case errors.As(err, &auth):
		return "credentials rejected"
	case errors.As(err, &rate):
		return "rate limited"
	case errors.As(err, &quota):
		return "quota exceeded"
	case errors.As(err, &loading):
		return "model loading"
	case errors.As(err, &notFound):
		return "model not found"
	case errors.As(err, &malformed):
		return "malformed reply"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &nerr) && nerr.Timeout():
		return "timed out"
	case errors.As(err, &down):
		return "unreachable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &server):
		return "provider error"
	}
	return "request failed"
}

func displayName(backend string) string {
	switch backend {
	case ai.ProviderFreeLLM:
		return "Free AI"
	case ai.ProviderOpenAI:
		return "OpenAI"
	case ai.ProviderAnthropic:
		return "Anthropic"
	}
	return backend
}
