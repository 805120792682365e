package models

import (
	"time"
)

// User is a single chat identity together with its hh.ru credential.
type User struct {
	ID       int64  `json:"id"`
	ChatID   int64  `json:"chat_id"`
	ResumeID string `json:"resume_id,omitempty"`
	Token    *Token `json:"token,omitempty"`
}

// Authorized reports whether the user has a stored access credential.
func (u *User) Authorized() bool {
	return u != nil && u.Token != nil && u.Token.AccessToken != ""
}

type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token is past its expiry. A zero expiry never expires.
func (t Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}
