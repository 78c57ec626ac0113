package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"gwi.com/chat-sync/internal/chatapi"
)

const (
	defaultChatModelName = "gemini-1.5-flash-latest"

	emptyReplyText = "I'm sorry, I couldn't generate a response at this time. Please try again."
)

type Gemini struct {
	client *genai.Client
	logger *zap.Logger
}

func NewGemini(ctx context.Context, apiKey string, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GenAI client")
	}

	return &Gemini{
		client: client,
		logger: logger.With(zap.String("component", "gemini")),
	}, nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	if err := g.client.Close(); err != nil {
		g.logger.Warn("Error closing GenAI client", zap.Error(err))
		return err
	}
	g.logger.Info("GenAI client closed.")
	return nil
}

// geminiModelName maps a requested id onto a Gemini model. Ids from other
// vendors fall back to the default model.
func geminiModelName(id string) string {
	id = strings.TrimPrefix(id, "models/")
	if strings.HasPrefix(id, "gemini") {
		return id
	}
	return defaultChatModelName
}

// splitHistory converts chat messages into Gemini's shape: system messages
// become the system instruction, assistant turns become "model", and the
// final user turn is returned separately to be sent.
func splitHistory(messages []chatapi.Message) (*genai.Content, []*genai.Content, *genai.Content, error) {
	if len(messages) == 0 {
		return nil, nil, nil, ErrEmptyHistory
	}

	var system []genai.Part
	var history []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case chatapi.RoleSystem:
			system = append(system, genai.Text(m.Content))
		case chatapi.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}

	if len(history) == 0 {
		return nil, nil, nil, ErrEmptyHistory
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return nil, nil, nil, errors.New("last message in history is not from 'user', cannot proceed with chat completion")
	}

	var instruction *genai.Content
	if len(system) > 0 {
		instruction = &genai.Content{Parts: system}
	}
	return instruction, history[:len(history)-1], last, nil
}

func (g *Gemini) Complete(ctx context.Context, req chatapi.ChatRequest) (chatapi.ChatResponse, error) {
	instruction, history, last, err := splitHistory(req.Messages)
	if err != nil {
		return chatapi.ChatResponse{}, err
	}

	modelName := geminiModelName(req.ModelID)
	model := g.client.GenerativeModel(modelName)
	model.SystemInstruction = instruction
	model.SetTemperature(float32(req.EffectiveTemperature()))
	model.SetMaxOutputTokens(int32(req.MaxTokens))

	chatSession := model.StartChat()
	chatSession.History = history

	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		return chatapi.ChatResponse{}, errors.Wrap(err, "gemini chat SendMessage failed")
	}

	out := chatapi.ChatResponse{
		ID:      uuid.NewString(),
		ModelID: modelName,
		Message: chatapi.Message{Role: chatapi.RoleAssistant, Content: replyText(g.logger, resp)},
	}
	if resp.UsageMetadata != nil {
		out.Usage = chatapi.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func replyText(logger *zap.Logger, resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		logger.Warn("Gemini response was empty or had no valid candidates/parts.")
		return emptyReplyText
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			logger.Debug("Gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}

	if responseText.Len() == 0 {
		return emptyReplyText
	}
	return responseText.String()
}

// Models lists the Gemini models that support content generation.
func (g *Gemini) Models(ctx context.Context) ([]string, error) {
	var ids []string
	it := g.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing gemini models")
		}
		if !slices.Contains(info.SupportedGenerationMethods, "generateContent") {
			continue
		}
		ids = append(ids, strings.TrimPrefix(info.Name, "models/"))
	}
	return ids, nil
}
