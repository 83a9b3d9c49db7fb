package models

import "time"

// Session holds an owner's stored authenticated session. Cookie and password
// payloads are vault tokens; this package never sees plaintext credentials.
// At most one session per owner is selected for use at a time: the most
// recently used among active, non-expired sessions.
type Session struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Cookies      string     `json:"-"` // vault token over cookie jar JSON
	Password     string     `json:"-"` // optional vault token
	Active       bool       `json:"active"`
	NeedsRefresh bool       `json:"needs_refresh"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Valid returns true if the session is active and not expired
func (s *Session) Valid(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	return true
}
