// Package llm forwards completion requests to a hosted model.
package llm

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/config"
)

type Provider interface {
	Complete(ctx context.Context, req chatapi.ChatRequest) (chatapi.ChatResponse, error)
	Models(ctx context.Context) ([]string, error)
	Close() error
}

var ErrEmptyHistory = errors.New("prompt history is empty for chat completion")

// New builds the provider selected by cfg.LLMProvider.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Provider, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return NewGemini(ctx, cfg.GeminiAPIKey, logger)
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, logger), nil
	default:
		return nil, errors.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
