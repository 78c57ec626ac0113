package auth

import (
	"sync"

	"gwi.com/chat-sync/internal/models"
)

// Session is the client's signed-in state. The completion client reads the
// token on every request; only login and logout write it.
type Session struct {
	mu    sync.RWMutex
	token string
	user  *models.User
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Start(token string, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
}

func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// SetUser replaces the cached profile without touching the token.
func (s *Session) SetUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		s.user = &user
	}
}
