package chatapi

import (
	"gwi.com/chat-sync/internal/models"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []Message `json:"messages"`
	ModelID     string    `json:"modelId"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"maxTokens"`
}

// EffectiveTemperature is the requested temperature, or the default when
// the request carries none.
func (r ChatRequest) EffectiveTemperature() float64 {
	if r.Temperature == nil || *r.Temperature < 0 {
		return models.DefaultTemperature
	}
	return *r.Temperature
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type ChatResponse struct {
	ID      string  `json:"id"`
	Message Message `json:"message"`
	ModelID string  `json:"modelId"`
	Usage   Usage   `json:"usage"`
}

type Captcha struct {
	Image     string `json:"image"`
	Signature string `json:"signature"`
}

type LoginRequest struct {
	Account     string `json:"account"`
	Password    string `json:"password"`
	CaptchaCode string `json:"captchaCode"`
	CaptchaSign string `json:"captchaSign"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type RegisterRequest struct {
	Account  string `json:"account"`
	Username string `json:"username"`
	Password string `json:"password"`
}
