package models

import (
	"strings"
	"time"
)

// TargetStatus tracks whether a target still needs checking
type TargetStatus string

const (
	TargetPending TargetStatus = "pending"
	TargetDone    TargetStatus = "done"
)

// Target is an external account identifier submitted by an owner for
// existence checking. Username is stored normalized.
type Target struct {
	ID            string       `json:"id"`
	OwnerID       string       `json:"owner_id"`
	Username      string       `json:"username"`
	Status        TargetStatus `json:"status"`
	LastCheckedAt *time.Time   `json:"last_checked_at,omitempty"`
	LastReason    string       `json:"last_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// IsPending returns true if the target should be picked up by the scheduler
func (t *Target) IsPending() bool {
	return t.Status == TargetPending
}

// NormalizeUsername canonicalizes a submitted identifier: trims whitespace,
// strips a leading @ marker and lowercases. Idempotent.
func NormalizeUsername(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

// ValidUsername reports whether a normalized username is acceptable
func ValidUsername(username string) bool {
	if username == "" || len(username) > 64 {
		return false
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
