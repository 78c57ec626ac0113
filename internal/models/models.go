package models

import (
	"time"
)

const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	UserID    string    `json:"userId"`
}

// ChatMessage is immutable once stored.
type ChatMessage struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	IsFromUser     bool      `json:"isFromUser"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversationId"`
	IsError        bool      `json:"isError"`
}

type User struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	ProfilePictureURL string    `json:"profilePictureUrl"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AiModel is configuration only and is never persisted by the client.
type AiModel struct {
	ID          string  `json:"id" toml:"id"`
	Name        string  `json:"name" toml:"name"`
	Description string  `json:"description" toml:"description"`
	APIEndpoint string  `json:"apiEndpoint" toml:"api_endpoint"`
	MaxTokens   int     `json:"maxTokens" toml:"max_tokens"`
	// Temperature is nil when unset; 0 is a valid setting.
	Temperature *float64 `json:"temperature,omitempty" toml:"temperature"`
	IsDefault   bool    `json:"isDefault" toml:"is_default"`
}

// WithDefaults fills unset generation parameters.
func (m AiModel) WithDefaults() AiModel {
	if m.MaxTokens <= 0 {
		m.MaxTokens = DefaultMaxTokens
	}
	if m.Temperature == nil || *m.Temperature < 0 {
		t := DefaultTemperature
		m.Temperature = &t
	}
	if m.Name == "" {
		m.Name = m.ID
	}
	return m
}

// GenerationTemperature returns the configured temperature, or
// DefaultTemperature when none is set.
func (m AiModel) GenerationTemperature() float64 {
	if m.Temperature == nil || *m.Temperature < 0 {
		return DefaultTemperature
	}
	return *m.Temperature
}
