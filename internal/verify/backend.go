package verify

import (
	"context"
	"time"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// Backend is one deep verification strategy. Implementations never return an
// error: every failure mode is folded into the CheckResult so the
// orchestrator can treat all backends uniformly.
type Backend interface {
	Name() string
	Verify(ctx context.Context, owner *models.Owner, username string) *models.CheckResult
}

type nowFunc func() time.Time

func defaultNow() time.Time { return time.Now() }

// Config holds the knobs shared by the verification backends
type Config struct {
	ProfileBaseURL string        // canonical profile URL base
	AltLookupURL   string        // lightweight public endpoint, %s = username
	MirrorBaseURL  string        // public mirror base for the mirror heuristic
	RenderTimeout  time.Duration // hard timeout on every render call
	SnapshotDir    string        // where evidence snapshots are written; empty disables them
}

func (c *Config) applyDefaults() {
	if c.ProfileBaseURL == "" {
		c.ProfileBaseURL = "https://www.instagram.com"
	}
	if c.AltLookupURL == "" {
		c.AltLookupURL = "https://www.instagram.com/api/v1/users/web_profile_info/?username=%s"
	}
	if c.MirrorBaseURL == "" {
		c.MirrorBaseURL = "https://imginn.com"
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 45 * time.Second
	}
}
