package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/stream"
)

func TestLoginValidatesBeforeCallingServer(t *testing.T) {
	client := &fakeClient{}
	vm := NewLoginViewModel(context.Background(), newDeps(newTestStore(t), client))
	defer vm.Close()

	tests := []struct {
		name, account, password, code, sign, want string
	}{
		{"no account", " ", "pw", "1234", "sig", "account is required"},
		{"no password", "luke", "", "1234", "sig", "password is required"},
		{"no captcha", "luke", "pw", "", "sig", "captcha is required"},
		{"no signature", "luke", "pw", "1234", "", "captcha is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := vm.Login(context.Background(), tt.account, tt.password, tt.code, tt.sign)
			assert.Equal(t, tt.want, res.Message)
			assert.Equal(t, result.KindValidation, res.Kind)
			assert.Equal(t, tt.want, vm.State().Get().Error)
		})
	}
	assert.Zero(t, client.loginCalls)
}

func TestLoginStartsSessionAndCreatesProfile(t *testing.T) {
	s := newTestStore(t)
	client := &fakeClient{login: func(req chatapi.LoginRequest) result.Result[chatapi.LoginResponse] {
		return result.Success(chatapi.LoginResponse{
			Token: "tok",
			User:  models.User{ID: "u-" + req.Account, Username: "Luke"},
		})
	}}
	deps := newDeps(s, client)
	vm := NewLoginViewModel(context.Background(), deps)
	defer vm.Close()

	captcha := vm.GetCaptcha(context.Background())
	require.True(t, captcha.IsSuccess())
	assert.Equal(t, "sig", vm.State().Get().Data.Captcha.Signature)

	res := vm.Login(context.Background(), "luke", "pw", "1234", captcha.Data.Signature)
	require.True(t, res.IsSuccess(), res.Message)
	assert.Equal(t, "tok", deps.Session.Token())
	assert.True(t, vm.State().Get().Data.SignedIn)

	stored := s.GetUser(context.Background(), "u-luke")
	require.True(t, stored.IsSuccess(), stored.Message)
	assert.Equal(t, "Luke", stored.Data.Username)

	vm.Logout()
	assert.Empty(t, deps.Session.Token())
	_, ok := deps.Session.CurrentUser()
	assert.False(t, ok)
	assert.False(t, vm.State().Get().Data.SignedIn)
}

func TestLoginFailureKeepsSessionEmpty(t *testing.T) {
	deps := newDeps(newTestStore(t), &fakeClient{})
	vm := NewLoginViewModel(context.Background(), deps)
	defer vm.Close()

	res := vm.Login(context.Background(), "luke", "wrong", "1234", "sig")
	assert.Equal(t, 401, res.Code)
	assert.Empty(t, deps.Session.Token())
	assert.Equal(t, "request error: Unauthorized", vm.State().Get().Error)
}

func TestRegister(t *testing.T) {
	vm := NewLoginViewModel(context.Background(), newDeps(newTestStore(t), &fakeClient{}))
	defer vm.Close()

	res := vm.Register(context.Background(), "leia", "", "pw")
	require.True(t, res.IsSuccess())
	assert.Equal(t, "leia", res.Data.Username)

	assert.Equal(t, "password is required", vm.Register(context.Background(), "leia", "", "").Message)
}

func TestConversationListRequiresSignIn(t *testing.T) {
	vm := NewConversationListViewModel(context.Background(), newDeps(newTestStore(t), &fakeClient{}))
	defer vm.Close()

	res := vm.Load(context.Background())
	assert.Equal(t, errSignInFirst, res.Message)
	assert.Equal(t, errSignInFirst, vm.State().Get().Error)
	assert.Equal(t, errSignInFirst, vm.CreateNewConversation(context.Background(), "hi").Message)
}

func TestConversationListFollowsStore(t *testing.T) {
	s := newTestStore(t)
	deps := newDeps(s, &fakeClient{})
	deps.Session.Start("tok", models.User{ID: "u1"})
	vm := NewConversationListViewModel(context.Background(), deps)
	defer vm.Close()

	require.True(t, vm.Load(context.Background()).IsSuccess())
	waitState(t, vm.State(), func(s State[[]models.Conversation]) bool { return !s.IsLoading })

	first := vm.CreateNewConversation(context.Background(), "Tell me about distributed systems design")
	require.True(t, first.IsSuccess())
	second := vm.CreateNewConversation(context.Background(), "")
	require.True(t, second.IsSuccess())
	mustConversation(t, s, "someone-else")

	st := waitState(t, vm.State(), func(s State[[]models.Conversation]) bool { return len(s.Data) == 2 })
	titles := []string{st.Data[0].Title, st.Data[1].Title}
	assert.ElementsMatch(t, []string{"Tell me about distri...", "New conversation"}, titles)

	require.True(t, vm.DeleteConversation(context.Background(), first.Data).IsSuccess())
	st = waitState(t, vm.State(), func(s State[[]models.Conversation]) bool { return len(s.Data) == 1 })
	assert.Equal(t, second.Data, st.Data[0].ID)
}

func TestConversationListStreamFailure(t *testing.T) {
	tests := []struct {
		policy    stream.Policy
		wantError bool
	}{
		{stream.FailOpenPolicy, false},
		{stream.FailClosedPolicy, true},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			s := newTestStore(t)
			deps := newDeps(s, &fakeClient{})
			deps.Policy = tt.policy
			deps.Session.Start("tok", models.User{ID: "u1"})
			mustConversation(t, s, "u1")

			vm := NewConversationListViewModel(context.Background(), deps)
			defer vm.Close()
			require.True(t, vm.Load(context.Background()).IsSuccess())
			waitState(t, vm.State(), func(s State[[]models.Conversation]) bool { return len(s.Data) == 1 })

			require.NoError(t, s.Close())
			if tt.wantError {
				st := waitState(t, vm.State(), func(s State[[]models.Conversation]) bool { return s.Error != "" })
				assert.Len(t, st.Data, 1)
				return
			}
			st := waitState(t, vm.State(), func(s State[[]models.Conversation]) bool { return len(s.Data) == 0 })
			assert.Empty(t, st.Error)
		})
	}
}

func TestProfile(t *testing.T) {
	s := newTestStore(t)
	deps := newDeps(s, &fakeClient{})
	vm := NewProfileViewModel(context.Background(), deps)
	defer vm.Close()

	assert.Equal(t, errSignInFirst, vm.Load(context.Background()).Message)

	deps.Session.Start("tok", models.User{ID: "u1", Username: "luke"})
	res := vm.Load(context.Background())
	require.True(t, res.IsSuccess())
	assert.Equal(t, "luke", res.Data.Username)

	require.True(t, s.CreateUser(context.Background(), models.User{ID: "u1", Username: "luke"}).IsSuccess())
	saved := vm.Save(context.Background(), models.User{Username: " Luke S ", Email: "luke@rebels.org"})
	require.True(t, saved.IsSuccess(), saved.Message)
	assert.Equal(t, "Luke S", saved.Data.Username)
	u, _ := deps.Session.CurrentUser()
	assert.Equal(t, "luke@rebels.org", u.Email)

	denied := vm.Save(context.Background(), models.User{ID: "u2", Username: "vader"})
	assert.Equal(t, result.KindPermission, denied.Kind)
	assert.Equal(t, denied.Message, vm.State().Get().Error)
}
