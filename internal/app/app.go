// Package app assembles the client: store, completion client, session and
// the view models built on top of them.
package app

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/auth"
	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/config"
	"gwi.com/chat-sync/internal/core"
	"gwi.com/chat-sync/internal/store"
	"gwi.com/chat-sync/internal/stream"
)

type App struct {
	ctx    context.Context
	deps   core.Deps
	logger *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}

	policy, err := stream.ParsePolicy(cfg.StreamErrorPolicy)
	if err != nil {
		return nil, err
	}
	catalog, err := config.LoadModelCatalog(cfg.ModelsFile, cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	session := auth.NewSession()
	client := chatapi.New(chatapi.Options{
		BaseURL:           cfg.ChatAPIURL,
		RequestTimeout:    cfg.RequestTimeout,
		ConnectTimeout:    cfg.ConnectTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Tokens:            session,
		Logger:            logger,
	})

	logger.Info("Client ready",
		zap.String("api", cfg.ChatAPIURL),
		zap.String("store", cfg.StoreBackend),
		zap.Stringer("stream_policy", policy),
		zap.String("default_model", catalog.Default().ID))

	return &App{
		ctx:    ctx,
		logger: logger,
		deps: core.Deps{
			Store:     st,
			Client:    client,
			Session:   session,
			Sequencer: core.NewSequencer(cfg.SerializeSends),
			Catalog:   catalog,
			Policy:    policy,
			Logger:    logger,
		},
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.Store, error) {
	switch cfg.StoreBackend {
	case "firestore":
		s, err := store.NewFirestoreStore(ctx, cfg.FirestoreProject, cfg.FirestoreCreds, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open firestore")
		}
		return s, nil
	default:
		s, err := store.NewSQLiteStore(cfg.StorePath, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open sqlite store")
		}
		return s, nil
	}
}

func (a *App) Session() *auth.Session {
	return a.deps.Session
}

func (a *App) Chat() *core.ChatViewModel {
	return core.NewChatViewModel(a.ctx, a.deps)
}

func (a *App) Conversations() *core.ConversationListViewModel {
	return core.NewConversationListViewModel(a.ctx, a.deps)
}

func (a *App) Login() *core.LoginViewModel {
	return core.NewLoginViewModel(a.ctx, a.deps)
}

func (a *App) Profile() *core.ProfileViewModel {
	return core.NewProfileViewModel(a.ctx, a.deps)
}

// Close releases the store. View models must be closed first.
func (a *App) Close() error {
	return a.deps.Store.Close()
}
