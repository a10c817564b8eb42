package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient calls the Messages API. It makes exactly one attempt per Generate.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicClient returns a client for the public API.
func NewAnthropicClient(apiKey string, httpTimeout time.Duration) *AnthropicClient {
	return NewAnthropicClientWithBaseURL(apiKey, httpTimeout, "")
}

// NewAnthropicClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewAnthropicClientWithBaseURL(apiKey string, httpTimeout time.Duration, baseURL string) *AnthropicClient {
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, &AuthError{APIError: &APIError{StatusCode: http.StatusUnauthorized, Message: "ANTHROPIC_API_KEY is missing"}}
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	system, msgs := splitSystem(req.Messages)
	body := anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = DefaultMaxTokens
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyAPIError(decodeAPIError(resp), resp)
	}
	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &MalformedResponseError{Backend: ProviderAnthropic, Detail: "decode: " + err.Error()}
	}
	var text strings.Builder
	for _, part := range out.Content {
		if part.Type == "" || part.Type == "text" {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &MalformedResponseError{Backend: ProviderAnthropic, Detail: "no text content"}
	}
	return &GenerateResponse{
		ID:        out.ID,
		Model:     out.Model,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		Usage:     Usage{PromptTokens: out.Usage.InputTokens, CompletionTokens: out.Usage.OutputTokens, TotalTokens: out.Usage.InputTokens + out.Usage.OutputTokens},
		RequestID: extractRequestID(resp),
	}, nil
}
