package remote

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Session is the authenticated context for remote calls. It is created on
// login, passed explicitly to whoever needs it and destroyed by Close.
type Session struct {
	mu        sync.RWMutex
	token     string
	user      User
	expiresAt time.Time
	closed    bool
	now       func() time.Time
}

// NewSession wraps an access token. A zero expiresAt never expires.
func NewSession(accessToken string, user User, expiresAt time.Time) *Session {
	return &Session{token: accessToken, user: user, expiresAt: expiresAt, now: time.Now}
}

// User returns the account the session belongs to.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser records the account once it has been fetched from the backend.
func (s *Session) SetUser(u User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Valid reports whether the session can still authenticate requests.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked()
}

func (s *Session) validLocked() bool {
	if s.closed || s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.now().Before(s.expiresAt)
}

// Token implements oauth2.TokenSource so the session can drive an
// oauth2.Transport directly.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return nil, ErrUnauthorized
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer", Expiry: s.expiresAt}, nil
}

// Close logs the session out. Further requests fail with ErrUnauthorized.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.token = ""
	s.mu.Unlock()
	return nil
}
