package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 100, cfg.Check.DailyKeyQuota)
	assert.Equal(t, 15*time.Second, cfg.Check.LookupTimeout)
	assert.Equal(t, 45*time.Second, cfg.Check.RenderTimeout)
	assert.Equal(t, 2*time.Second, cfg.Check.Phase1Delay)
	assert.Equal(t, 15*time.Second, cfg.Check.Phase2Delay)
	assert.Equal(t, 5, cfg.Check.CooldownThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Check.SchedulerInterval)
	assert.Equal(t, "adaptive", cfg.Check.ProxyStrategy)
	assert.True(t, cfg.Check.TrustDeepVerify)
	assert.Equal(t, "log", cfg.Notify.Driver)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROXY_STRATEGY", "random")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvertedDelays(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHECK_PHASE1_DELAY", "30s")
	t.Setenv("CHECK_PHASE2_DELAY", "5s")

	_, err := Load()
	assert.Error(t, err)
}

func TestLookupTimeoutIsItsOwnKnob(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOOKUP_TIMEOUT", "5s")
	t.Setenv("RENDER_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Check.LookupTimeout)
	assert.Equal(t, 90*time.Second, cfg.Check.RenderTimeout)
}

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", Name: "checker", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/checker?sslmode=disable", cfg.DSN())
}

func TestSESDriverRequiresFromAddress(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NOTIFY_DRIVER", "ses")
	t.Setenv("NOTIFY_FROM_ADDRESS", "")

	_, err := Load()
	assert.Error(t, err)
}
