package core

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/stream"
)

// ConversationListViewModel drives the list screen for the signed in user.
type ConversationListViewModel struct {
	deps   Deps
	logger *zap.Logger
	scope  *Scope
	state  *Observable[State[[]models.Conversation]]

	mu        sync.Mutex
	stopWatch context.CancelFunc
}

func NewConversationListViewModel(parent context.Context, deps Deps) *ConversationListViewModel {
	deps = deps.withDefaults()
	return &ConversationListViewModel{
		deps:   deps,
		logger: deps.Logger.Named("conversations"),
		scope:  NewScope(parent),
		state:  NewObservable(State[[]models.Conversation]{Data: []models.Conversation{}}),
	}
}

func (vm *ConversationListViewModel) State() *Observable[State[[]models.Conversation]] {
	return vm.state
}

// Load starts watching the signed in user's conversations, most recently
// updated first.
func (vm *ConversationListViewModel) Load(ctx context.Context) result.Result[result.Unit] {
	user, ok := vm.deps.Session.CurrentUser()
	if !ok {
		vm.setError(errSignInFirst)
		return result.FromError[result.Unit](result.Permission(errSignInFirst))
	}

	vm.mu.Lock()
	if vm.stopWatch != nil {
		vm.stopWatch()
	}
	watchCtx, stop := context.WithCancel(vm.scope.Context())
	vm.stopWatch = stop
	vm.mu.Unlock()

	vm.state.Update(func(s State[[]models.Conversation]) State[[]models.Conversation] {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	src := vm.deps.Store.ObserveConversations(watchCtx, user.ID)
	list := stream.Apply(src, vm.deps.Policy, []models.Conversation{}, func(ev result.Result[[]models.Conversation]) {
		vm.logger.Warn("Conversation stream failed, showing empty list",
			zap.String("user_id", user.ID), zap.String("error", ev.Message))
	})

	started := vm.scope.Go(func(context.Context) {
		defer list.Close()
		for ev := range list.C() {
			vm.state.Update(func(s State[[]models.Conversation]) State[[]models.Conversation] {
				switch ev.Status {
				case result.StatusLoading:
					s.IsLoading = true
				case result.StatusSuccess:
					s.Data = ev.Data
					s.IsLoading = false
				case result.StatusError:
					s.Error = ev.Message
					s.IsLoading = false
				}
				return s
			})
		}
	})
	if !started {
		list.Close()
	}
	return result.Success(result.Unit{})
}

// CreateNewConversation creates an empty conversation titled after
// initialMessage. Sending the message is left to the chat screen.
func (vm *ConversationListViewModel) CreateNewConversation(ctx context.Context, initialMessage string) result.Result[string] {
	user, ok := vm.deps.Session.CurrentUser()
	if !ok {
		return result.FromError[string](result.Permission(errSignInFirst))
	}
	title := DeriveTitle(initialMessage)
	if strings.TrimSpace(title) == "" {
		title = "New conversation"
	}

	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	now := vm.deps.now()
	res := vm.deps.Store.CreateConversation(ctx, models.Conversation{
		Title:     title,
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if res.IsError() {
		vm.setError(res.Message)
	}
	return res
}

// DeleteConversation removes the conversation and all of its messages.
func (vm *ConversationListViewModel) DeleteConversation(ctx context.Context, id string) result.Result[result.Unit] {
	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	res := vm.deps.Store.DeleteConversation(ctx, id)
	if res.IsError() {
		vm.setError(res.Message)
	}
	return res
}

func (vm *ConversationListViewModel) Close() {
	vm.scope.Close()
}

func (vm *ConversationListViewModel) setError(msg string) {
	vm.state.Update(func(s State[[]models.Conversation]) State[[]models.Conversation] {
		s.IsLoading = false
		s.Error = msg
		return s
	})
}
