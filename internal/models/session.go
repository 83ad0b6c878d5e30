package models

import (
	"fmt"
	"time"
)

// Session represents a signed-in browser: which client cookie it belongs to
// and which B-Tweet user authenticated from it
type Session struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"` // Browser client id from the cookie
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	UserJSON  []byte    `json:"-"` // Raw login payload, source of the authUser query
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionState represents the current state of a session
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
)

// Validate checks if the session fields are valid
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}

	if s.ClientID == "" {
		return fmt.Errorf("client id is required")
	}

	if s.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}

	return nil
}

// State returns the current state of the session
func (s *Session) State() SessionState {
	if !time.Now().Before(s.ExpiresAt) {
		return SessionStateExpired
	}
	return SessionStateActive
}

// IsActive returns true if the session is currently active
func (s *Session) IsActive() bool {
	return s.State() == SessionStateActive
}

// IsExpired returns true if the session has expired
func (s *Session) IsExpired() bool {
	return s.State() == SessionStateExpired
}
