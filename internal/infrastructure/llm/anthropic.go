package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"schoolgenius-seeder/internal/config"
	"schoolgenius-seeder/internal/domain/service"
	"schoolgenius-seeder/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicDefaultMax     = 1024
)

// AnthropicGenerator 直接调用 Anthropic Messages 接口
type AnthropicGenerator struct {
	provider    string
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicHTTPError struct {
	StatusCode int
	Body       string
}

func (e *anthropicHTTPError) Error() string {
	return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, service.Snippet(e.Body, 300))
}

// NewAnthropicGenerator 创建客户端，超时取自配置
func NewAnthropicGenerator(provider string, cfg config.ProviderConfig) *AnthropicGenerator {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMax
	}
	return &AnthropicGenerator{
		provider:    provider,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Generate 发送一次请求，不做重试
func (g *AnthropicGenerator) Generate(ctx context.Context, req service.GenerateRequest) (gen *service.Generation, err error) {
	ctx, span := tracer.Start(ctx, "llm.Generate", trace.WithAttributes(
		attribute.String("provider", g.provider),
		attribute.String("model", g.model),
	))
	defer func() { tracer.End(span, err) }()

	body := anthropicRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      req.SystemInstruction,
		Temperature: g.temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}

	started := time.Now()
	raw, err := g.do(ctx, body)
	if err != nil {
		transportErr := &service.GenerationTransportError{Provider: g.provider, Err: err}
		if httpErr, ok := err.(*anthropicHTTPError); ok {
			transportErr.StatusCode = httpErr.StatusCode
		}
		return nil, transportErr
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &service.GenerationTransportError{Provider: g.provider, Err: fmt.Errorf("decode response: %w", err)}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	model := resp.Model
	if model == "" {
		model = g.model
	}
	gen = &service.Generation{
		Provider: g.provider,
		Model:    model,
		Text:     text.String(),
		Latency:  time.Since(started),
		Usage: service.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			InputChars:   int64(utf8.RuneCountInString(req.SystemInstruction) + utf8.RuneCountInString(req.Prompt)),
			OutputChars:  int64(utf8.RuneCountInString(text.String())),
		},
	}
	return parseGeneration(g.provider, gen)
}

func (g *AnthropicGenerator) do(ctx context.Context, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &anthropicHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
