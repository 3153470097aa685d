package llm

import (
	"context"
	"time"
	"unicode/utf8"

	"schoolgenius-seeder/internal/domain/service"
	"schoolgenius-seeder/pkg/tracer"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EinoGenerator 基于 Eino ChatModel 的生成客户端，适用于 OpenAI 兼容的提供商
type EinoGenerator struct {
	provider string
	model    string
	chat     model.BaseChatModel
}

// NewEinoGenerator 创建生成客户端
func NewEinoGenerator(provider, modelName string, chat model.BaseChatModel) *EinoGenerator {
	return &EinoGenerator{provider: provider, model: modelName, chat: chat}
}

// Generate 发送一次请求并解析第一个结构化块
func (g *EinoGenerator) Generate(ctx context.Context, req service.GenerateRequest) (gen *service.Generation, err error) {
	ctx, span := tracer.Start(ctx, "llm.Generate", trace.WithAttributes(
		attribute.String("provider", g.provider),
		attribute.String("model", g.model),
	))
	defer func() { tracer.End(span, err) }()

	messages := make([]*schema.Message, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, schema.SystemMessage(req.SystemInstruction))
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	started := time.Now()
	out, err := g.chat.Generate(ctx, messages)
	if err != nil {
		return nil, &service.GenerationTransportError{Provider: g.provider, Err: err}
	}

	gen = &service.Generation{
		Provider: g.provider,
		Model:    g.model,
		Text:     out.Content,
		Latency:  time.Since(started),
		Usage: service.Usage{
			InputChars:  int64(utf8.RuneCountInString(req.SystemInstruction) + utf8.RuneCountInString(req.Prompt)),
			OutputChars: int64(utf8.RuneCountInString(out.Content)),
		},
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		gen.Usage.InputTokens = int64(out.ResponseMeta.Usage.PromptTokens)
		gen.Usage.OutputTokens = int64(out.ResponseMeta.Usage.CompletionTokens)
	}
	span.SetAttributes(
		attribute.Int64("tokens.input", gen.Usage.InputTokens),
		attribute.Int64("tokens.output", gen.Usage.OutputTokens),
	)
	return parseGeneration(g.provider, gen)
}
