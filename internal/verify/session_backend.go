package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
)

// SessionBackend renders the profile authenticated with the owner's current
// session. A render that bounces to a login or challenge surface means the
// session went stale, never that the profile is gone.
type SessionBackend struct {
	sessions repositories.SessionRepository
	cipher   vault.Cipher
	renderer Renderer
	cfg      Config
	logger   *slog.Logger
	now      nowFunc
}

// NewSessionBackend creates the deep-session backend
func NewSessionBackend(sessions repositories.SessionRepository, cipher vault.Cipher, renderer Renderer, cfg Config, logger *slog.Logger) *SessionBackend {
	cfg.applyDefaults()
	return &SessionBackend{
		sessions: sessions,
		cipher:   cipher,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		now:      defaultNow,
	}
}

func (b *SessionBackend) Name() string { return models.ViaSession }

// Verify renders the profile through the owner's session
func (b *SessionBackend) Verify(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	session, err := b.sessions.GetCurrent(ctx, owner.ID)
	if err != nil {
		return models.Unknown(models.ViaSession, models.ReasonSessionInvalid)
	}
	if !session.Valid(b.now()) {
		return models.Unknown(models.ViaSession, models.ReasonSessionInvalid)
	}

	client, err := newSessionClient(session, b.cipher, b.cfg.ProfileBaseURL, b.cfg.RenderTimeout)
	if err != nil {
		b.logger.Error("failed to build session client",
			slog.String("session_id", session.ID), slog.Any("error", err))
		return models.Unknown(models.ViaSession, models.ReasonSessionInvalid)
	}

	rendered, err := b.renderer.Render(ctx, client, profileURL(b.cfg.ProfileBaseURL, username))
	if err != nil {
		b.logger.Warn("session render failed",
			slog.String("username", username), slog.Any("error", err))
		return models.Unknown(models.ViaSession, models.ReasonRenderFailed)
	}

	if err := b.sessions.MarkUsed(ctx, session.ID, b.now()); err != nil {
		b.logger.Warn("failed to stamp session usage", slog.String("session_id", session.ID), slog.Any("error", err))
	}

	switch rendered.Class {
	case PageProfile:
		return &models.CheckResult{
			Exists:       models.ExistenceTrue,
			CheckedVia:   models.ViaSession,
			EvidencePath: rendered.SnapshotPath,
		}
	case PageNotFound:
		return &models.CheckResult{Exists: models.ExistenceFalse, CheckedVia: models.ViaSession}
	case PageLogin:
		if err := b.sessions.SetNeedsRefresh(ctx, session.ID, true); err != nil {
			b.logger.Warn("failed to flag session for refresh", slog.String("session_id", session.ID), slog.Any("error", err))
		}
		return models.Unknown(models.ViaSession, models.ReasonSessionInvalid)
	case PageBlocked:
		return models.Unknown(models.ViaSession, models.ReasonBlocked)
	default:
		return models.Unknown(models.ViaSession, "")
	}
}

func profileURL(base, username string) string {
	return fmt.Sprintf("%s/%s/", base, url.PathEscape(username))
}
