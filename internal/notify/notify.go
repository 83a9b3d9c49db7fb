package notify

import (
	"context"
	"log/slog"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// Notifier delivers a positive check result to the owner. Only confirmed
// profiles are ever announced; negatives and retries stay silent.
type Notifier interface {
	NotifyFound(ctx context.Context, owner *models.Owner, username, evidencePath string) error
}

// LogNotifier writes notifications to the structured log; the default when
// no delivery driver is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyFound logs the confirmed profile
func (n *LogNotifier) NotifyFound(ctx context.Context, owner *models.Owner, username, evidencePath string) error {
	n.logger.Info("profile confirmed",
		slog.String("owner_id", owner.ID),
		slog.String("username", username),
		slog.String("evidence_path", evidencePath),
	)
	return nil
}
