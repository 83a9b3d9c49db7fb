package models

import "time"

// VerificationMode selects which verification backend phase 2 uses for an
// owner's targets. Closed enum; dispatch happens in the orchestrator's
// backend table, never by string comparison at call sites.
type VerificationMode string

const (
	// ModeAPIOnly trusts the lookup API result; no deep verification.
	ModeAPIOnly VerificationMode = "api"
	// ModeAPISession verifies positives through the owner's stored session.
	ModeAPISession VerificationMode = "api+session"
	// ModeAPIProxy verifies positives anonymously through an owner proxy.
	ModeAPIProxy VerificationMode = "api+proxy"
	// ModeAPIAltLookup verifies positives via the lightweight alternate
	// public endpoint, without session or proxy.
	ModeAPIAltLookup VerificationMode = "api+alt-lookup"
	// ModeSessionOnly runs the deep session check for every target,
	// regardless of what the lookup API says.
	ModeSessionOnly VerificationMode = "session"
)

// ValidVerificationMode reports whether mode is a known enum value
func ValidVerificationMode(mode VerificationMode) bool {
	switch mode {
	case ModeAPIOnly, ModeAPISession, ModeAPIProxy, ModeAPIAltLookup, ModeSessionOnly:
		return true
	}
	return false
}

// ForcesDeepVerify returns true for modes that run phase 2 even when the
// lookup phase did not return a positive.
func (m VerificationMode) ForcesDeepVerify() bool {
	return m == ModeSessionOnly
}

// SkipsDeepVerify returns true for modes that never run phase 2.
func (m VerificationMode) SkipsDeepVerify() bool {
	return m == ModeAPIOnly
}

// Owner is a user on whose behalf targets are checked
type Owner struct {
	ID            string           `json:"id"`
	Email         string           `json:"email"`
	Mode          VerificationMode `json:"verification_mode"`
	FallbackOrder []string         `json:"fallback_order,omitempty"` // heuristic names; empty means default chain
	Active        bool             `json:"active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
