package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	// Completion backend
	LLMProvider   string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	DatabaseURL   string
	HTTPPort      string
	LogLevel      string
	JWTSecret     string
	TokenTTL      time.Duration
	CaptchaTTL    time.Duration

	// Client
	ChatAPIURL        string
	RequestTimeout    time.Duration
	ConnectTimeout    time.Duration
	RequestsPerSecond float64
	StoreBackend      string
	StorePath         string
	FirestoreProject  string
	FirestoreCreds    string
	ModelsFile        string
	DefaultModel      string
	StreamErrorPolicy string
	SerializeSends    bool

	// EnvFileErr is why the env file was not loaded, if it wasn't. Settings
	// then come from the process environment alone.
	EnvFileErr error
}

// Load reads an optional .env file (or the given files) and then the
// process environment.
func Load(files ...string) *Config {
	envErr := godotenv.Load(files...)

	return &Config{
		EnvFileErr: envErr,

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", "chat_server.db"),
		HTTPPort:      getEnv("HTTP_PORT", "8013"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTL:      getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
		CaptchaTTL:    getEnvAsDuration("CAPTCHA_TTL", 5*time.Minute),

		ChatAPIURL:        strings.TrimRight(getEnv("CHAT_API_URL", "http://localhost:8013"), "/"),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		ConnectTimeout:    getEnvAsDuration("CONNECT_TIMEOUT", 15*time.Second),
		RequestsPerSecond: getEnvAsFloat("REQUESTS_PER_SECOND", 0),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		StorePath:         getEnv("STORE_PATH", "chat_client.db"),
		FirestoreProject:  getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCreds:    getEnv("FIRESTORE_CREDENTIALS", ""),
		ModelsFile:        getEnv("MODELS_FILE", ""),
		DefaultModel:      getEnv("DEFAULT_MODEL", ""),
		StreamErrorPolicy: getEnv("STREAM_ERROR_POLICY", "fail-open"),
		SerializeSends:    getEnvAsBool("SERIALIZE_SENDS", true),
	}
}

// ValidateServer reports the first missing setting the completion backend needs.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY environment variable is required")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY environment variable is required")
		}
	default:
		return errors.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// ValidateClient reports the first missing setting the client needs.
func (c *Config) ValidateClient() error {
	if c.ChatAPIURL == "" {
		return errors.New("CHAT_API_URL environment variable is required")
	}
	switch c.StoreBackend {
	case "sqlite":
		if c.StorePath == "" {
			return errors.New("STORE_PATH environment variable is required")
		}
	case "firestore":
		if c.FirestoreProject == "" {
			return errors.New("FIRESTORE_PROJECT_ID environment variable is required")
		}
	default:
		return errors.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds := getEnvAsInt(key, -1); seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
