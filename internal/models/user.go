package models

import (
	"encoding/json"
	"fmt"
)

// AuthUser is the authenticated user returned by POST /api/auth/login.
// The API has returned both "id" and Mongo-style "_id" over time, so both are accepted.
type AuthUser struct {
	ID         string `json:"id,omitempty"`
	MongoID    string `json:"_id,omitempty"`
	Username   string `json:"username"`
	FullName   string `json:"fullName,omitempty"`
	Email      string `json:"email,omitempty"`
	ProfileImg string `json:"profileImg,omitempty"`
}

// UserID returns whichever identifier the API supplied
func (u *AuthUser) UserID() string {
	if u.ID != "" {
		return u.ID
	}
	return u.MongoID
}

// DisplayName prefers the full name and falls back to the username
func (u *AuthUser) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// ParseAuthUser decodes a login success payload
func ParseAuthUser(payload json.RawMessage) (*AuthUser, error) {
	var user AuthUser
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	if user.UserID() == "" {
		return nil, fmt.Errorf("auth user has no id")
	}
	return &user, nil
}
