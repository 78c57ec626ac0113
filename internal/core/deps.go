// Package core holds the screen orchestrators. Each view model owns an
// observable state, a task scope that Close cancels, and talks to the
// store and the completion client through the interfaces below.
package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/auth"
	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/stream"
)

type Store interface {
	ObserveConversations(ctx context.Context, userID string) *stream.Stream[[]models.Conversation]
	GetConversation(ctx context.Context, id string) result.Result[models.Conversation]
	CreateConversation(ctx context.Context, c models.Conversation) result.Result[string]
	UpdateConversation(ctx context.Context, c models.Conversation) result.Result[result.Unit]
	DeleteConversation(ctx context.Context, id string) result.Result[result.Unit]

	ObserveMessages(ctx context.Context, conversationID string) *stream.Stream[[]models.ChatMessage]
	AddMessage(ctx context.Context, m models.ChatMessage) result.Result[string]
	DeleteMessage(ctx context.Context, id string) result.Result[result.Unit]
	ClearMessages(ctx context.Context, conversationID string) result.Result[result.Unit]

	GetUser(ctx context.Context, id string) result.Result[models.User]
	CreateUser(ctx context.Context, u models.User) result.Result[string]
	UpdateUserProfile(ctx context.Context, actorID string, u models.User) result.Result[models.User]

	Close() error
}

type ChatClient interface {
	SendChatRequest(ctx context.Context, messages []chatapi.Message, modelID string, temperature float64, maxTokens int) result.Result[chatapi.ChatResponse]
	ListModels(ctx context.Context) result.Result[[]string]
	Captcha(ctx context.Context) result.Result[chatapi.Captcha]
	Login(ctx context.Context, req chatapi.LoginRequest) result.Result[chatapi.LoginResponse]
	Register(ctx context.Context, req chatapi.RegisterRequest) result.Result[models.User]
}

// Deps is shared by every view model of a process.
type Deps struct {
	Store     Store
	Client    ChatClient
	Session   *auth.Session
	Sequencer *Sequencer
	Catalog   *models.Catalog
	Policy    stream.Policy
	Logger    *zap.Logger
	Clock     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Session == nil {
		d.Session = auth.NewSession()
	}
	if d.Sequencer == nil {
		d.Sequencer = NewSequencer(true)
	}
	if d.Catalog == nil {
		d.Catalog = models.DefaultCatalog()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func (d Deps) now() time.Time {
	return d.Clock().UTC().Truncate(time.Microsecond)
}

const errSignInFirst = "please sign in first"
