package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
)

type ProfileViewModel struct {
	deps   Deps
	logger *zap.Logger
	scope  *Scope
	state  *Observable[State[models.User]]
}

func NewProfileViewModel(parent context.Context, deps Deps) *ProfileViewModel {
	deps = deps.withDefaults()
	return &ProfileViewModel{
		deps:   deps,
		logger: deps.Logger.Named("profile"),
		scope:  NewScope(parent),
		state:  NewObservable(State[models.User]{}),
	}
}

func (vm *ProfileViewModel) State() *Observable[State[models.User]] {
	return vm.state
}

// Load reads the signed in user's profile. A profile that was never stored
// falls back to what the session knows.
func (vm *ProfileViewModel) Load(ctx context.Context) result.Result[models.User] {
	user, ok := vm.deps.Session.CurrentUser()
	if !ok {
		return vm.fail(result.FromError[models.User](result.Permission(errSignInFirst)))
	}

	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	res := vm.deps.Store.GetUser(ctx, user.ID)
	if res.Kind == result.KindNotFound {
		res = result.Success(user)
	}
	if res.IsError() {
		return vm.fail(res)
	}
	vm.state.Set(State[models.User]{Data: res.Data})
	return res
}

// Save writes u as the signed in user's profile. Only the owner may update
// a profile; the store enforces it.
func (vm *ProfileViewModel) Save(ctx context.Context, u models.User) result.Result[models.User] {
	actor, _ := vm.deps.Session.CurrentUser()
	if u.ID == "" {
		u.ID = actor.ID
	}
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)

	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	res := vm.deps.Store.UpdateUserProfile(ctx, actor.ID, u)
	if res.IsError() {
		vm.logger.Warn("Profile update rejected", zap.String("user_id", u.ID), zap.String("error", res.Message))
		return vm.fail(res)
	}
	vm.deps.Session.SetUser(res.Data)
	vm.state.Set(State[models.User]{Data: res.Data})
	return res
}

func (vm *ProfileViewModel) Close() {
	vm.scope.Close()
}

func (vm *ProfileViewModel) fail(res result.Result[models.User]) result.Result[models.User] {
	vm.state.Update(func(s State[models.User]) State[models.User] {
		s.IsLoading = false
		s.Error = res.Message
		return s
	})
	return res
}
