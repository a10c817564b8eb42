package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type hfCall struct {
	Model string
	Body  hfRequest
}

// hfServer answers each call with the next status; 200 replies carry text.
func hfServer(t *testing.T, statuses []int, text string) (*ipv4Server, func() []hfCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []hfCall
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/models/") {
			http.NotFound(w, r)
			return
		}
		var body hfRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		i := len(calls)
		calls = append(calls, hfCall{Model: strings.TrimPrefix(r.URL.Path, "/models/"), Body: body})
		mu.Unlock()
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		switch st := statuses[i]; st {
		case http.StatusOK:
			_ = json.NewEncoder(w).Encode([]map[string]any{{"generated_text": text}})
		case http.StatusServiceUnavailable:
			w.WriteHeader(st)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "Model is currently loading", "estimated_time": 20.0})
		default:
			w.WriteHeader(st)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "Authorization header is invalid"})
		}
	}))
	return srv, func() []hfCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]hfCall(nil), calls...)
	}
}

func freeClient(url string, attempts int) *FreeClient {
	return NewFreeClient(FreeConfig{
		Token:        "hf_test",
		BaseURL:      url,
		HTTPTimeout:  2 * time.Second,
		Attempts:     attempts,
		Delay:        time.Millisecond,
		RetryTimeout: time.Second,
		Logger:       zerolog.Nop(),
	})
}

func freeRequest() GenerateRequest {
	return GenerateRequest{
		Model:       "acme/custom-model",
		Messages:    []Message{{Role: "user", Content: "Dataset context\n\nQuestion: top customers?"}},
		RetryPrompt: "Analyze this data question: top customers?",
	}
}

func TestFreeClientMovesToNextCandidateOnLoading(t *testing.T) {
	srv, calls := hfServer(t, []int{503, 200}, "Acme leads revenue.")
	defer srv.Close()

	resp, err := freeClient(srv.URL, 3).Generate(context.Background(), freeRequest())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	got := calls()
	if len(got) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(got))
	}
	if got[0].Model != "acme/custom-model" || got[1].Model != "google/flan-t5-large" {
		t.Fatalf("unexpected candidate order: %q, %q", got[0].Model, got[1].Model)
	}
	if got[0].Body.Parameters.MaxNewTokens != 500 || got[0].Body.Parameters.ReturnFullText == nil || *got[0].Body.Parameters.ReturnFullText {
		t.Fatalf("unexpected first parameters: %+v", got[0].Body.Parameters)
	}
	if got[1].Body.Inputs != "Analyze this data question: top customers?" || got[1].Body.Parameters.MaxNewTokens != 200 {
		t.Fatalf("retry should use the simple prompt, got %+v", got[1].Body)
	}
	if resp.Text() != "Acme leads revenue." || resp.Model != "google/flan-t5-large" || !resp.Simplified {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestFreeClientExhaustsAttempts(t *testing.T) {
	srv, calls := hfServer(t, []int{503}, "")
	defer srv.Close()

	_, err := freeClient(srv.URL, 3).Generate(context.Background(), freeRequest())
	var bu *BackendUnavailableError
	if !errors.As(err, &bu) {
		t.Fatalf("expected BackendUnavailableError, got %v", err)
	}
	var loading *ModelLoadingError
	if !errors.As(err, &loading) || loading.EstimatedTime != 20*time.Second {
		t.Fatalf("expected wrapped ModelLoadingError, got %v", err)
	}
	if n := len(calls()); n != 3 {
		t.Fatalf("expected attempt budget of 3, got %d calls", n)
	}
}

func TestFreeClientAuthErrorIsPermanent(t *testing.T) {
	srv, calls := hfServer(t, []int{401}, "")
	defer srv.Close()

	_, err := freeClient(srv.URL, 3).Generate(context.Background(), freeRequest())
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if n := len(calls()); n != 1 {
		t.Fatalf("expected a single call, got %d", n)
	}
}

func TestFreeClientCandidatesDeduplicated(t *testing.T) {
	c := freeClient("", 3)
	got := c.Candidates("google/flan-t5-xl")
	want := []string{"google/flan-t5-xl", "google/flan-t5-large", "microsoft/DialoGPT-medium", "microsoft/DialoGPT-large"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestParseHFTextShapes(t *testing.T) {
	cases := map[string]string{
		`[{"generated_text":" hello "}]`: "hello",
		`{"generated_text":"dict"}`:       "dict",
		`[{"text":"alt key"}]`:            "alt key",
	}
	for in, want := range cases {
		got, err := parseHFText([]byte(in))
		if err != nil || got != want {
			t.Fatalf("parseHFText(%s) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{`[]`, `"plain"`, `{"other":1}`, `not json`} {
		if _, err := parseHFText([]byte(in)); err == nil {
			t.Fatalf("parseHFText(%s) should fail", in)
		}
	}
}
