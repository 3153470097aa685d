package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schoolgenius-seeder/internal/config"
	"schoolgenius-seeder/internal/domain/service"
)

func newAnthropicServer(t *testing.T, status int, body string) (*httptest.Server, *anthropicRequest) {
	t.Helper()
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func anthropicConfig(url string) config.ProviderConfig {
	return config.ProviderConfig{
		Kind:    "anthropic",
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "claude-sonnet",
		Timeout: 5 * time.Second,
	}
}

func TestAnthropicGenerate(t *testing.T) {
	srv, got := newAnthropicServer(t, http.StatusOK, `{
		"model": "claude-sonnet-20250101",
		"content": [{"type": "text", "text": "Here you go: {\"tip\": \"take a breath\"}"}],
		"usage": {"input_tokens": 120, "output_tokens": 30}
	}`)
	g := NewAnthropicGenerator("claude", anthropicConfig(srv.URL))

	gen, err := g.Generate(context.Background(), service.GenerateRequest{
		SystemInstruction: "be kind",
		Prompt:            "help",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.System != "be kind" || len(got.Messages) != 1 || got.Messages[0].Content != "help" {
		t.Errorf("request = %+v", got)
	}
	if got.MaxTokens != anthropicDefaultMax {
		t.Errorf("max_tokens = %d", got.MaxTokens)
	}
	obj, ok := gen.Output.Object()
	if !ok || obj["tip"] != "take a breath" {
		t.Errorf("output = %+v", gen.Output.Value)
	}
	if gen.Usage.InputTokens != 120 || gen.Usage.OutputTokens != 30 {
		t.Errorf("usage = %+v", gen.Usage)
	}
	if gen.Model != "claude-sonnet-20250101" {
		t.Errorf("model = %q", gen.Model)
	}
}

func TestAnthropicNon2xxIsTransportError(t *testing.T) {
	srv, _ := newAnthropicServer(t, http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error"}}`)
	g := NewAnthropicGenerator("claude", anthropicConfig(srv.URL))

	_, err := g.Generate(context.Background(), service.GenerateRequest{Prompt: "help"})
	var transportErr *service.GenerationTransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want GenerationTransportError", err)
	}
	if transportErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", transportErr.StatusCode)
	}
}

func TestAnthropicUnparseableIsBilledParseError(t *testing.T) {
	srv, _ := newAnthropicServer(t, http.StatusOK, `{
		"content": [{"type": "text", "text": "no json here"}],
		"usage": {"input_tokens": 7, "output_tokens": 3}
	}`)
	g := NewAnthropicGenerator("claude", anthropicConfig(srv.URL))

	_, err := g.Generate(context.Background(), service.GenerateRequest{Prompt: "help"})
	var parseErr *service.GenerationParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want GenerationParseError", err)
	}
	if parseErr.Usage.InputTokens != 7 || parseErr.Usage.OutputTokens != 3 {
		t.Errorf("usage = %+v", parseErr.Usage)
	}
}

func TestRouterBuildsByKind(t *testing.T) {
	cfg := &config.LLMConfig{
		DefaultProvider: "claude",
		Providers: map[string]config.ProviderConfig{
			"claude": anthropicConfig("http://127.0.0.1:1"),
			"weird":  {Kind: "carrier-pigeon", Timeout: time.Second},
		},
	}
	r := NewRouter(cfg)

	g1, err := r.Generator(context.Background(), "")
	if err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if _, ok := g1.(*AnthropicGenerator); !ok {
		t.Errorf("got %T, want *AnthropicGenerator", g1)
	}
	g2, _ := r.Generator(context.Background(), "claude")
	if g1 != g2 {
		t.Error("generator not cached")
	}
	if _, err := r.Generator(context.Background(), "weird"); err == nil {
		t.Error("unknown kind accepted")
	}
	if _, err := r.Generator(context.Background(), "missing"); err == nil {
		t.Error("unknown provider accepted")
	}
}
