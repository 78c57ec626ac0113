package core

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/auth"
	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/store"
	"gwi.com/chat-sync/internal/stream"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return epoch }

type fakeClient struct {
	mu         sync.Mutex
	requests   [][]chatapi.Message
	reply      func(n int, msgs []chatapi.Message) result.Result[chatapi.ChatResponse]
	models     result.Result[[]string]
	login      func(req chatapi.LoginRequest) result.Result[chatapi.LoginResponse]
	loginCalls int
}

func echoReply(_ int, msgs []chatapi.Message) result.Result[chatapi.ChatResponse] {
	last := msgs[len(msgs)-1].Content
	return result.Success(chatapi.ChatResponse{
		Message: chatapi.Message{Role: chatapi.RoleAssistant, Content: "re: " + last},
	})
}

func (f *fakeClient) SendChatRequest(_ context.Context, msgs []chatapi.Message, _ string, _ float64, _ int) result.Result[chatapi.ChatResponse] {
	f.mu.Lock()
	f.requests = append(f.requests, msgs)
	n := len(f.requests)
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		reply = echoReply
	}
	return reply(n, msgs)
}

func (f *fakeClient) ListModels(context.Context) result.Result[[]string] {
	return f.models
}

func (f *fakeClient) Captcha(context.Context) result.Result[chatapi.Captcha] {
	return result.Success(chatapi.Captcha{Image: "img", Signature: "sig"})
}

func (f *fakeClient) Login(_ context.Context, req chatapi.LoginRequest) result.Result[chatapi.LoginResponse] {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	if f.login == nil {
		return result.Failure[chatapi.LoginResponse]("request error: Unauthorized", 401)
	}
	return f.login(req)
}

func (f *fakeClient) Register(_ context.Context, req chatapi.RegisterRequest) result.Result[models.User] {
	return result.Success(models.User{ID: "id-" + req.Account, Username: req.Username})
}

func (f *fakeClient) calls() [][]chatapi.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]chatapi.Message(nil), f.requests...)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"), zap.NewNop(), store.WithClock(fixedClock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newDeps(s Store, c ChatClient) Deps {
	return Deps{
		Store:     s,
		Client:    c,
		Session:   auth.NewSession(),
		Sequencer: NewSequencer(true),
		Catalog:   models.DefaultCatalog(),
		Policy:    stream.FailOpenPolicy,
		Logger:    zap.NewNop(),
		Clock:     fixedClock,
	}
}

func mustConversation(t *testing.T, s Store, userID string) string {
	t.Helper()
	res := s.CreateConversation(context.Background(), models.Conversation{Title: "t", UserID: userID})
	require.True(t, res.IsSuccess(), res.Message)
	return res.Data
}

// waitState blocks until match accepts a published state.
func waitState[T any](t *testing.T, o *Observable[T], match func(T) bool) T {
	t.Helper()
	ch, cancel := o.Subscribe()
	defer cancel()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case v := <-ch:
			if match(v) {
				return v
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state, last: %+v", o.Get())
		}
	}
}

func contents(msgs []models.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
