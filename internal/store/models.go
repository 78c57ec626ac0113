package store

import (
	"time"

	"gwi.com/chat-sync/internal/models"
)

// Account is a server-side login. It is never serialized to clients.
type Account struct {
	ID           string
	Account      string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// User is the public profile for the account.
func (a *Account) User() models.User {
	return models.User{
		ID:        a.ID,
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
	}
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
