package proxyhealth

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
)

// Strategy selects how proxies are ranked
type Strategy string

const (
	// StrategyPriority ranks by the owner-assigned priority value
	StrategyPriority Strategy = "priority"
	// StrategyAdaptive ranks by observed success rate; never-used proxies
	// get a neutral prior so they are tried before a degraded proxy is
	// written off.
	StrategyAdaptive Strategy = "adaptive"
)

// Proxies with no history score as if they succeeded half the time
const neutralPrior = 0.5

var ErrNoUsableProxy = errors.New("proxyhealth: no usable proxy")

// Config holds cooldown policy knobs
type Config struct {
	CooldownThreshold int           // fail streak that triggers a cooldown
	CooldownBase      time.Duration // first cooldown duration
	CooldownMax       time.Duration // growth cap
}

// Registry tracks per-proxy health and selects proxies for verification
// requests. Activity flag, priority and deletion are manual owner actions
// applied through the repository directly; the registry only maintains the
// automatic counters and never deactivates a proxy.
type Registry struct {
	repo   repositories.ProxyRepository
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a proxy health registry
func NewRegistry(repo repositories.ProxyRepository, cfg Config, logger *slog.Logger) *Registry {
	return &Registry{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the registry clock; used by tests
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// SelectBest returns the best usable proxy for the owner under the given
// strategy, or ErrNoUsableProxy. Selection is a pure read of current state;
// nothing is checked out or locked.
func (r *Registry) SelectBest(ctx context.Context, ownerID string, strategy Strategy) (*models.Proxy, error) {
	proxies, err := r.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	usable := proxies[:0]
	for _, p := range proxies {
		if p.Usable(now) {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoUsableProxy
	}

	switch strategy {
	case StrategyAdaptive:
		sort.SliceStable(usable, func(i, j int) bool {
			si, sj := adaptiveScore(usable[i]), adaptiveScore(usable[j])
			if si != sj {
				return si > sj
			}
			return usable[i].Priority < usable[j].Priority
		})
	default:
		sort.SliceStable(usable, func(i, j int) bool {
			if usable[i].Priority != usable[j].Priority {
				return usable[i].Priority < usable[j].Priority
			}
			return usable[i].FailStreak < usable[j].FailStreak
		})
	}

	return usable[0], nil
}

func adaptiveScore(p *models.Proxy) float64 {
	rate, known := p.SuccessRate()
	if !known {
		return neutralPrior
	}
	return rate
}

// ReportOutcome records the result of one request made through the proxy
// and persists the updated counters. A failure streak at the threshold puts
// the proxy into cooldown; the cooldown duration doubles with each
// consecutive cooldown up to the configured cap. Success resets both the
// streak and the growth.
func (r *Registry) ReportOutcome(ctx context.Context, proxy *models.Proxy, success bool) error {
	now := r.now()
	proxy.Used++
	proxy.LastCheckedAt = &now

	if success {
		proxy.Succeeded++
		proxy.FailStreak = 0
		proxy.Cooldowns = 0
	} else {
		proxy.FailStreak++
		if proxy.FailStreak >= r.cfg.CooldownThreshold {
			proxy.Cooldowns++
			until := now.Add(r.cooldownDuration(proxy.Cooldowns))
			proxy.CooldownUntil = &until
			r.logger.Warn("proxy entering cooldown",
				slog.String("proxy_id", proxy.ID),
				slog.String("addr", proxy.Addr()),
				slog.Int("consecutive_cooldowns", proxy.Cooldowns),
				slog.Time("until", until),
			)
		}
	}

	if err := r.repo.UpdateHealth(ctx, proxy); err != nil {
		r.logger.Error("failed to persist proxy health", slog.String("proxy_id", proxy.ID), slog.Any("error", err))
		return err
	}

	return nil
}

func (r *Registry) cooldownDuration(consecutive int) time.Duration {
	d := r.cfg.CooldownBase
	for i := 1; i < consecutive; i++ {
		d *= 2
		if d >= r.cfg.CooldownMax {
			return r.cfg.CooldownMax
		}
	}
	if r.cfg.CooldownMax > 0 && d > r.cfg.CooldownMax {
		return r.cfg.CooldownMax
	}
	return d
}
