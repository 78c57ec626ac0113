package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/auth"
	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/llm"
	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/store"
)

// AccountStore persists server logins.
type AccountStore interface {
	CreateAccount(ctx context.Context, account, username, passwordHash string) (*store.Account, error)
	GetAccountByName(ctx context.Context, account string) (*store.Account, error)
	GetAccountByID(ctx context.Context, id string) (*store.Account, error)
}

type ctxKey int

const accountKey ctxKey = iota

// AccountFromContext returns the account set by JWTAuthMiddleware.
func AccountFromContext(ctx context.Context) (*store.Account, bool) {
	a, ok := ctx.Value(accountKey).(*store.Account)
	return a, ok
}

type APIHandler struct {
	accounts AccountStore
	tokens   *auth.Tokens
	captchas *auth.Captchas
	provider llm.Provider
	logger   *zap.Logger
}

func NewAPIHandler(accounts AccountStore, tokens *auth.Tokens, captchas *auth.Captchas, provider llm.Provider, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		accounts: accounts,
		tokens:   tokens,
		captchas: captchas,
		provider: provider,
		logger:   logger.With(zap.String("component", "api")),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		accountID, err := h.tokens.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		account, err := h.accounts.GetAccountByID(r.Context(), accountID)
		if err != nil {
			h.logger.Error("Error in JWTAuthMiddleware", zap.String("account_id", accountID), zap.Error(err))
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if account == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) CaptchaHandler(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.captchas.Issue()
	if err != nil {
		h.logger.Error("Error issuing captcha", zap.Error(err))
		http.Error(w, "Failed to issue captcha", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, chatapi.Captcha{Image: challenge.Image, Signature: challenge.Signature})
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req chatapi.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req.Account = strings.TrimSpace(req.Account)
	if req.Account == "" || req.Password == "" {
		http.Error(w, "Account and password are required", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		req.Username = req.Account
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Error hashing password", zap.String("account", req.Account), zap.Error(err))
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), req.Account, req.Username, hashedPassword)
	if err != nil {
		if result.IsKind(err, result.KindValidation) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("Error creating account", zap.String("account", req.Account), zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, account.User())
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req chatapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Account == "" || req.Password == "" || req.CaptchaCode == "" {
		http.Error(w, "Account, password and captcha are required", http.StatusBadRequest)
		return
	}

	if !h.captchas.Verify(req.CaptchaCode, req.CaptchaSign) {
		http.Error(w, "Invalid captcha", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetAccountByName(r.Context(), req.Account)
	if err != nil {
		h.logger.Error("Error getting account", zap.String("account", req.Account), zap.Error(err))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if account == nil || !auth.CheckPasswordHash(req.Password, account.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.tokens.GenerateJWT(account.ID)
	if err != nil {
		h.logger.Error("Error generating JWT", zap.String("account", req.Account), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, chatapi.LoginResponse{Token: token, User: account.User()})
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatapi.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if len(req.Messages) == 0 {
		http.Error(w, "Messages are required", http.StatusBadRequest)
		return
	}
	temperature := req.EffectiveTemperature()
	req.Temperature = &temperature
	if req.MaxTokens <= 0 {
		req.MaxTokens = models.DefaultMaxTokens
	}

	resp, err := h.provider.Complete(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrEmptyHistory):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, context.DeadlineExceeded):
			http.Error(w, "Completion timed out", http.StatusGatewayTimeout)
		default:
			h.logger.Error("Error completing chat", zap.String("model", req.ModelID), zap.Error(err))
			http.Error(w, "Failed to complete chat", http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := h.provider.Models(r.Context())
	if err != nil {
		h.logger.Error("Error listing models", zap.Error(err))
		http.Error(w, "Failed to list models", http.StatusBadGateway)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}
