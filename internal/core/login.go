package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
)

type LoginState struct {
	Captcha  chatapi.Captcha
	User     models.User
	SignedIn bool
}

type LoginViewModel struct {
	deps   Deps
	logger *zap.Logger
	scope  *Scope
	state  *Observable[State[LoginState]]
}

func NewLoginViewModel(parent context.Context, deps Deps) *LoginViewModel {
	deps = deps.withDefaults()
	vm := &LoginViewModel{
		deps:   deps,
		logger: deps.Logger.Named("login"),
		scope:  NewScope(parent),
	}
	var st LoginState
	if u, ok := deps.Session.CurrentUser(); ok {
		st.User, st.SignedIn = u, true
	}
	vm.state = NewObservable(State[LoginState]{Data: st})
	return vm
}

func (vm *LoginViewModel) State() *Observable[State[LoginState]] {
	return vm.state
}

func (vm *LoginViewModel) GetCaptcha(ctx context.Context) result.Result[chatapi.Captcha] {
	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	vm.setLoading()
	res := vm.deps.Client.Captcha(ctx)
	vm.state.Update(func(s State[LoginState]) State[LoginState] {
		s.IsLoading = false
		s.Error = res.ErrorMessage()
		if res.IsSuccess() {
			s.Data.Captcha = res.Data
		}
		return s
	})
	return res
}

// Login validates the form, exchanges the credentials for a token and
// starts the session. The user's profile is created on first sign in.
func (vm *LoginViewModel) Login(ctx context.Context, account, password, captchaCode, captchaSign string) result.Result[models.User] {
	account = strings.TrimSpace(account)
	captchaCode = strings.TrimSpace(captchaCode)
	switch {
	case account == "":
		return vm.invalid("account is required")
	case password == "":
		return vm.invalid("password is required")
	case captchaCode == "" || captchaSign == "":
		return vm.invalid("captcha is required")
	}

	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	vm.setLoading()
	res := vm.deps.Client.Login(ctx, chatapi.LoginRequest{
		Account:     account,
		Password:    password,
		CaptchaCode: captchaCode,
		CaptchaSign: captchaSign,
	})
	if res.IsError() {
		vm.setError(res.Message)
		return result.Forward[models.User](res)
	}

	vm.deps.Session.Start(res.Data.Token, res.Data.User)
	user := vm.ensureProfile(ctx, res.Data.User)
	vm.logger.Info("Signed in", zap.String("user_id", user.ID))

	vm.state.Update(func(s State[LoginState]) State[LoginState] {
		s.IsLoading = false
		s.Error = ""
		s.Data.User = user
		s.Data.SignedIn = true
		s.Data.Captcha = chatapi.Captcha{}
		return s
	})
	return result.Success(user)
}

// Register creates an account. The caller signs in afterwards.
func (vm *LoginViewModel) Register(ctx context.Context, account, username, password string) result.Result[models.User] {
	account = strings.TrimSpace(account)
	username = strings.TrimSpace(username)
	switch {
	case account == "":
		return vm.invalid("account is required")
	case password == "":
		return vm.invalid("password is required")
	}
	if username == "" {
		username = account
	}

	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	vm.setLoading()
	res := vm.deps.Client.Register(ctx, chatapi.RegisterRequest{
		Account:  account,
		Username: username,
		Password: password,
	})
	vm.state.Update(func(s State[LoginState]) State[LoginState] {
		s.IsLoading = false
		s.Error = res.ErrorMessage()
		return s
	})
	return res
}

func (vm *LoginViewModel) Logout() {
	vm.deps.Session.End()
	vm.state.Set(State[LoginState]{})
}

func (vm *LoginViewModel) Close() {
	vm.scope.Close()
}

// ensureProfile returns the stored profile, creating it from the server's
// view of the user when there is none yet.
func (vm *LoginViewModel) ensureProfile(ctx context.Context, u models.User) models.User {
	got := vm.deps.Store.GetUser(ctx, u.ID)
	switch {
	case got.IsSuccess():
		vm.deps.Session.SetUser(got.Data)
		return got.Data
	case got.Kind == result.KindNotFound:
		if u.CreatedAt.IsZero() {
			u.CreatedAt = vm.deps.now()
		}
		if res := vm.deps.Store.CreateUser(ctx, u); res.IsError() {
			vm.logger.Warn("Could not create profile", zap.String("user_id", u.ID), zap.String("error", res.Message))
		}
	default:
		vm.logger.Warn("Could not load profile", zap.String("user_id", u.ID), zap.String("error", got.Message))
	}
	return u
}

func (vm *LoginViewModel) invalid(msg string) result.Result[models.User] {
	vm.setError(msg)
	return result.FromError[models.User](result.Validation(msg))
}

func (vm *LoginViewModel) setLoading() {
	vm.state.Update(func(s State[LoginState]) State[LoginState] {
		s.IsLoading = true
		s.Error = ""
		return s
	})
}

func (vm *LoginViewModel) setError(msg string) {
	vm.state.Update(func(s State[LoginState]) State[LoginState] {
		s.IsLoading = false
		s.Error = msg
		return s
	})
}
