package models

import "time"

// Session binds one browser context to one UserAccount until it is destroyed
// or expires.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpiredAt reports whether the session has expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// AccountEvent is published to the message broker on account lifecycle
// changes.
type AccountEvent struct {
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventAccountRegistered = "account.registered"
	EventAccountLoggedIn   = "account.logged_in"
	EventAccountLoggedOut  = "account.logged_out"
)
