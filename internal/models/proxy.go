package models

import (
	"fmt"
	"time"
)

// Proxy priority bounds; 1 is highest, 10 lowest
const (
	ProxyPriorityMin = 1
	ProxyPriorityMax = 10
)

// Proxy is an owner-scoped upstream used for anonymous verification renders.
// Health counters are maintained by the proxy health registry; Active and
// Priority are manual owner controls and never touched by automatic policy.
type Proxy struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Scheme        string     `json:"scheme"` // http, https or socks5
	Host          string     `json:"host"`
	Port          int        `json:"port"`
	Username      string     `json:"username,omitempty"`
	Password      string     `json:"-"` // vault token, decrypted only at dial time
	Active        bool       `json:"active"`
	Priority      int        `json:"priority"`
	Used          int64      `json:"used"`
	Succeeded     int64      `json:"succeeded"`
	FailStreak    int        `json:"fail_streak"`
	Cooldowns     int        `json:"cooldowns"` // consecutive cooldowns, resets on success
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Usable returns true if the proxy may be selected at the given instant:
// active and not cooling down. Cooldown never deactivates a proxy; only the
// owner does.
func (p *Proxy) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.CooldownUntil != nil && p.CooldownUntil.After(now) {
		return false
	}
	return true
}

// SuccessRate returns succeeded/used and whether the proxy has history at all
func (p *Proxy) SuccessRate() (float64, bool) {
	if p.Used == 0 {
		return 0, false
	}
	return float64(p.Succeeded) / float64(p.Used), true
}

// Addr returns host:port
func (p *Proxy) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// ClampPriority bounds a priority value to the valid range
func ClampPriority(priority int) int {
	if priority < ProxyPriorityMin {
		return ProxyPriorityMin
	}
	if priority > ProxyPriorityMax {
		return ProxyPriorityMax
	}
	return priority
}
