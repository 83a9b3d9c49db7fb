package verify

import (
	"context"
	"log/slog"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/proxyhealth"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
)

// ProxyBackend renders the profile anonymously through a proxy chosen by the
// health registry. Every render outcome is reported back against the proxy
// that carried it.
type ProxyBackend struct {
	registry *proxyhealth.Registry
	cipher   vault.Cipher
	renderer Renderer
	strategy proxyhealth.Strategy
	cfg      Config
	logger   *slog.Logger
}

// NewProxyBackend creates the proxy-only backend
func NewProxyBackend(registry *proxyhealth.Registry, cipher vault.Cipher, renderer Renderer, strategy proxyhealth.Strategy, cfg Config, logger *slog.Logger) *ProxyBackend {
	cfg.applyDefaults()
	return &ProxyBackend{
		registry: registry,
		cipher:   cipher,
		renderer: renderer,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger,
	}
}

func (b *ProxyBackend) Name() string { return models.ViaProxy }

// Verify renders the profile through the owner's best usable proxy
func (b *ProxyBackend) Verify(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	proxy, err := b.registry.SelectBest(ctx, owner.ID, b.strategy)
	if err != nil {
		return models.Unknown(models.ViaProxy, models.ReasonNoUsableProxy)
	}

	client, err := newProxyClient(proxy, b.cipher, b.cfg.RenderTimeout)
	if err != nil {
		b.logger.Error("failed to build proxy client",
			slog.String("proxy_id", proxy.ID), slog.Any("error", err))
		return models.Unknown(models.ViaProxy, models.ReasonNoUsableProxy)
	}

	rendered, err := b.renderer.Render(ctx, client, profileURL(b.cfg.ProfileBaseURL, username))
	if err != nil {
		b.report(ctx, proxy, false)
		b.logger.Warn("proxy render failed",
			slog.String("proxy_id", proxy.ID),
			slog.String("username", username),
			slog.Any("error", err))
		return models.Unknown(models.ViaProxy, models.ReasonRenderFailed)
	}

	switch rendered.Class {
	case PageProfile:
		b.report(ctx, proxy, true)
		return &models.CheckResult{
			Exists:       models.ExistenceTrue,
			CheckedVia:   models.ViaProxy,
			EvidencePath: rendered.SnapshotPath,
		}
	case PageNotFound:
		// The proxy itself worked; the profile is just gone
		b.report(ctx, proxy, true)
		return &models.CheckResult{Exists: models.ExistenceFalse, CheckedVia: models.ViaProxy}
	case PageBlocked:
		b.report(ctx, proxy, false)
		return models.Unknown(models.ViaProxy, models.ReasonBlocked)
	case PageLogin:
		// An anonymous render forced to login means the exit got flagged
		b.report(ctx, proxy, false)
		return models.Unknown(models.ViaProxy, models.ReasonBlocked)
	default:
		b.report(ctx, proxy, false)
		return models.Unknown(models.ViaProxy, "")
	}
}

func (b *ProxyBackend) report(ctx context.Context, proxy *models.Proxy, success bool) {
	if err := b.registry.ReportOutcome(ctx, proxy, success); err != nil {
		b.logger.Warn("failed to report proxy outcome", slog.String("proxy_id", proxy.ID), slog.Any("error", err))
	}
}
