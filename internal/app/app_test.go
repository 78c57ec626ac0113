package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/config"
	"gwi.com/chat-sync/internal/models"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	return &config.Config{
		ChatAPIURL:        apiURL,
		StoreBackend:      "sqlite",
		StorePath:         filepath.Join(t.TempDir(), "client.db"),
		StreamErrorPolicy: "fail-open",
		SerializeSends:    true,
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.StoreBackend = "redis"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(t, "http://localhost")
	cfg.StreamErrorPolicy = "sometimes"
	_, err = New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestAppSignsInAndChats(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatapi.LoginResponse{Token: "tok", User: models.User{ID: "u1", Username: "luke"}})
	})
	mux.HandleFunc("/chat/chat", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(chatapi.ChatResponse{Message: chatapi.Message{Role: chatapi.RoleAssistant, Content: "hello there"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, err := New(context.Background(), testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	login := a.Login()
	defer login.Close()
	require.True(t, login.Login(context.Background(), "luke", "pw", "1234", "sig").IsSuccess())
	assert.Equal(t, "tok", a.Session().Token())

	chat := a.Chat()
	defer chat.Close()
	created := chat.CreateNewConversation(context.Background(), "", "hi")
	require.True(t, created.IsSuccess(), created.Message)
	assert.Equal(t, "Bearer tok", gotAuth)

	list := a.Conversations()
	defer list.Close()
	require.True(t, list.Load(context.Background()).IsSuccess())
	ch, cancel := list.State().Subscribe()
	defer cancel()
	timeout := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case st := <-ch:
			if len(st.Data) == 1 {
				assert.Equal(t, "hi", st.Data[0].Title)
				done = true
			}
		case <-timeout:
			t.Fatal("conversation list never showed the new conversation")
		}
	}

	profile := a.Profile()
	defer profile.Close()
	res := profile.Load(context.Background())
	require.True(t, res.IsSuccess())
	assert.Equal(t, "luke", res.Data.Username)
}
