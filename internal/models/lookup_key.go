package models

import "time"

// LookupKey is an owner-scoped credential for the external lookup API.
// QtyReq counts requests made on RefDate; the counter logically resets to
// zero whenever RefDate is not the current day.
type LookupKey struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Secret     string     `json:"-"` // vault token
	QtyReq     int        `json:"qty_req"`
	RefDate    time.Time  `json:"ref_date"`
	Working    bool       `json:"working"`
	FailCount  int        `json:"fail_count"` // consecutive failed calls
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SameDay reports whether two timestamps fall on the same calendar day (UTC)
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// RequestsToday returns the quota counter as of now, applying the daily reset
func (k *LookupKey) RequestsToday(now time.Time) int {
	if !SameDay(k.RefDate, now) {
		return 0
	}
	return k.QtyReq
}

// Eligible returns true if the key may serve a lookup call right now
func (k *LookupKey) Eligible(now time.Time, dailyLimit int) bool {
	if !k.Working {
		return false
	}
	return k.RequestsToday(now) < dailyLimit
}
