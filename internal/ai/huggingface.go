package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"
)

// DefaultHFBaseURL is the Hugging Face Inference API root.
const DefaultHFBaseURL = "https://api-inference.huggingface.co"

// FreeClient calls the Hugging Face Inference API. Generate walks a list of
// candidate models, moving on whenever a model answers 503 (still loading).
type FreeClient struct {
	httpClient   *http.Client
	token        string
	baseURL      string
	attempts     int
	delay        time.Duration
	retryTimeout time.Duration
	log          zerolog.Logger
}

// FreeConfig configures a FreeClient. Zero values take the defaults.
type FreeConfig struct {
	Token        string
	BaseURL      string
	HTTPTimeout  time.Duration
	Attempts     int
	Delay        time.Duration
	RetryTimeout time.Duration
	Logger       zerolog.Logger
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	DoSample       *bool   `json:"do_sample,omitempty"`
	ReturnFullText *bool   `json:"return_full_text,omitempty"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

// NewFreeClient builds a FreeClient from cfg.
func NewFreeClient(cfg FreeConfig) *FreeClient {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultFreeAttempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 15 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHFBaseURL
	}
	return &FreeClient{
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		token:        cfg.Token,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		attempts:     cfg.Attempts,
		delay:        cfg.Delay,
		retryTimeout: cfg.RetryTimeout,
		log:          cfg.Logger,
	}
}

// Candidates returns the models tried for a request: the requested model first,
// then the catalog's free models, without duplicates.
func (c *FreeClient) Candidates(model string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, m := range append([]string{model}, FreeCandidates()...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func (c *FreeClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(c.token) == "" {
		return nil, &AuthError{APIError: &APIError{StatusCode: http.StatusUnauthorized, Message: "HF_TOKEN is missing"}}
	}
	candidates := c.Candidates(req.Model)
	prompt := flattenPrompt(req.Messages)
	retryPrompt := req.RetryPrompt
	if retryPrompt == "" {
		retryPrompt = prompt
	}

	var (
		out     *GenerateResponse
		lastErr error
		next    int
	)
	op := func() error {
		if next >= len(candidates) {
			return backoff.Permanent(lastErr)
		}
		attempt := next
		model := candidates[attempt]
		next++

		body := hfRequest{Inputs: prompt, Parameters: hfParameters{
			MaxNewTokens:   500,
			Temperature:    0.7,
			DoSample:       boolPtr(true),
			ReturnFullText: boolPtr(false),
		}}
		actx := ctx
		if attempt > 0 {
			body = hfRequest{Inputs: retryPrompt, Parameters: hfParameters{MaxNewTokens: 200, Temperature: 0.5}}
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, c.retryTimeout)
			defer cancel()
		}
		resp, err := c.call(actx, model, body)
		if err == nil {
			resp.Simplified = attempt > 0
			out = resp
			return nil
		}
		lastErr = err
		var loading *ModelLoadingError
		if errors.As(err, &loading) {
			c.log.Warn().Str("backend", ProviderFreeLLM).Str("model", model).Int("attempt", attempt+1).Msg("model loading, trying next candidate")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), uint64(c.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		var loading *ModelLoadingError
		if errors.As(err, &loading) {
			return nil, &BackendUnavailableError{Backend: ProviderFreeLLM, Reason: fmt.Sprintf("no model ready after %d attempts", next), Err: err}
		}
		return nil, err
	}
	return out, nil
}

func (c *FreeClient) call(ctx context.Context, model string, body hfRequest) (*GenerateResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/models/" + model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusServiceUnavailable {
		apiErr := decodeAPIError(resp)
		loading := &ModelLoadingError{APIError: apiErr, Model: model}
		if est, ok := apiErr.Raw["estimated_time"].(float64); ok {
			loading.EstimatedTime = time.Duration(est * float64(time.Second))
		}
		return nil, loading
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyAPIError(decodeAPIError(resp), resp)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportError(endpoint, err)
	}
	text, err := parseHFText(raw)
	if err != nil {
		return nil, err
	}
	return &GenerateResponse{
		Model:     model,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text}}},
		RequestID: extractRequestID(resp),
	}, nil
}

// parseHFText accepts a list of generations or a single object, keyed by
// generated_text or text.
func parseHFText(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", &MalformedResponseError{Backend: ProviderFreeLLM, Detail: "decode: " + err.Error()}
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return "", &MalformedResponseError{Backend: ProviderFreeLLM, Detail: "empty generation list"}
		}
		v = list[0]
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", &MalformedResponseError{Backend: ProviderFreeLLM, Detail: "unexpected reply shape"}
	}
	for _, key := range []string{"generated_text", "text"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", &MalformedResponseError{Backend: ProviderFreeLLM, Detail: "no generated_text"}
}

// flattenPrompt joins chat messages into the single text input the Inference API takes.
func flattenPrompt(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if s := strings.TrimSpace(m.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func boolPtr(b bool) *bool { return &b }
