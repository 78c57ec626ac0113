package llm

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/chatapi"
)

const defaultOpenAIModel = openai.GPT3Dot5Turbo

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAI uses the public API unless baseURL is set.
func NewOpenAI(apiKey, baseURL string, logger *zap.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.With(zap.String("component", "openai")),
	}
}

func (o *OpenAI) Close() error { return nil }

func toOpenAIMessages(messages []chatapi.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case chatapi.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case chatapi.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func (o *OpenAI) Complete(ctx context.Context, req chatapi.ChatRequest) (chatapi.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return chatapi.ChatResponse{}, ErrEmptyHistory
	}
	model := req.ModelID
	if model == "" {
		model = defaultOpenAIModel
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openAITemperature(req.EffectiveTemperature()),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return chatapi.ChatResponse{}, errors.Wrap(err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		o.logger.Warn("OpenAI response had no choices", zap.String("model", model))
		return chatapi.ChatResponse{}, errors.New("openai returned no choices")
	}

	return chatapi.ChatResponse{
		ID:      resp.ID,
		ModelID: resp.Model,
		Message: chatapi.Message{Role: chatapi.RoleAssistant, Content: resp.Choices[0].Message.Content},
		Usage: chatapi.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (o *OpenAI) Models(ctx context.Context) ([]string, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing openai models")
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// openAITemperature keeps an explicit 0 on the wire. go-openai omits a zero
// temperature, which the API then reads as its own default of 1.
func openAITemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
