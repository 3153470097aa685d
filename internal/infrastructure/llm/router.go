package llm

import (
	"context"
	"sync"

	"schoolgenius-seeder/internal/config"
	"schoolgenius-seeder/internal/domain/service"
	apperrors "schoolgenius-seeder/pkg/errors"
)

// Router 按提供商名称惰性构建生成客户端
type Router struct {
	cfg   *config.LLMConfig
	eino  *EinoFactory
	mu    sync.Mutex
	cache map[string]service.Generator
}

// NewRouter 创建路由
func NewRouter(cfg *config.LLMConfig) *Router {
	return &Router{
		cfg:   cfg,
		eino:  NewEinoFactory(cfg),
		cache: make(map[string]service.Generator),
	}
}

// Generator 返回提供商对应的客户端
func (r *Router) Generator(ctx context.Context, provider string) (service.Generator, error) {
	if provider == "" {
		provider = r.cfg.DefaultProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.cache[provider]; ok {
		return g, nil
	}

	pc, ok := r.cfg.Providers[provider]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "llm provider %q is not configured", provider)
	}

	var g service.Generator
	switch pc.Kind {
	case "anthropic":
		g = NewAnthropicGenerator(provider, pc)
	case "openai", "":
		chat, err := r.eino.Get(ctx, provider)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidConfig, "failed to build chat model")
		}
		g = NewEinoGenerator(provider, pc.Model, chat)
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "llm provider %q has unknown kind %q", provider, pc.Kind)
	}
	r.cache[provider] = g
	return g, nil
}
