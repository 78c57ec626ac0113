package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/chat-sync/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHAT_API_URL", "http://chat.local:8013/")
	t.Setenv("REQUEST_TIMEOUT", "45")
	t.Setenv("CONNECT_TIMEOUT", "2s")
	t.Setenv("SERIALIZE_SENDS", "false")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "http://chat.local:8013", cfg.ChatAPIURL)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.False(t, cfg.SerializeSends)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, 5*time.Minute, cfg.CaptchaTTL)
	assert.Error(t, cfg.EnvFileErr)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_BASE_URL=http://llm.local/v1\n"), 0o600))
	t.Setenv("OPENAI_BASE_URL", "")
	os.Unsetenv("OPENAI_BASE_URL")

	cfg := Load(path)
	assert.NoError(t, cfg.EnvFileErr)
	assert.Equal(t, "http://llm.local/v1", cfg.OpenAIBaseURL)
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{LLMProvider: "gemini"}
	assert.ErrorContains(t, cfg.ValidateServer(), "JWT_SECRET")

	cfg.JWTSecret = "s"
	assert.ErrorContains(t, cfg.ValidateServer(), "GEMINI_API_KEY")

	cfg.LLMProvider = "openai"
	cfg.OpenAIAPIKey = "k"
	assert.NoError(t, cfg.ValidateServer())

	cfg.LLMProvider = "other"
	assert.Error(t, cfg.ValidateServer())
}

func TestValidateClient(t *testing.T) {
	cfg := &Config{ChatAPIURL: "http://x", StoreBackend: "firestore"}
	assert.ErrorContains(t, cfg.ValidateClient(), "FIRESTORE_PROJECT_ID")

	cfg.StoreBackend = "sqlite"
	cfg.StorePath = "x.db"
	assert.NoError(t, cfg.ValidateClient())
}

func TestLoadModelCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	body := `
default = "local"

[[models]]
id = "remote"
name = "Remote"

[[models]]
id = "local"
name = "Local"
max_tokens = 512
temperature = 0.2

[[models]]
id = "exact"
temperature = 0.0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	catalog, err := LoadModelCatalog(path, "")
	require.NoError(t, err)
	require.Len(t, catalog.Models, 3)

	def := catalog.Default()
	assert.Equal(t, "local", def.ID)
	assert.Equal(t, 512, def.MaxTokens)
	assert.Equal(t, 0.2, def.GenerationTemperature())
	assert.Equal(t, 2048, catalog.Models[0].MaxTokens)
	assert.Equal(t, models.DefaultTemperature, catalog.Models[0].GenerationTemperature())

	exact, ok := catalog.Find("exact")
	require.True(t, ok)
	assert.Equal(t, 0.0, exact.GenerationTemperature())

	catalog, err = LoadModelCatalog(path, "remote")
	require.NoError(t, err)
	assert.Equal(t, "remote", catalog.Default().ID)
}

func TestLoadModelCatalogBuiltin(t *testing.T) {
	catalog, err := LoadModelCatalog("", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", catalog.Default().ID)

	_, err = LoadModelCatalog(filepath.Join(t.TempDir(), "nope.toml"), "")
	assert.Error(t, err)
}
