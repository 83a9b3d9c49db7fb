package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// AltLookupBackend probes the lightweight public profile-info endpoint.
// No session, no proxy; just a second opinion from a different surface than
// the quota-limited lookup API.
type AltLookupBackend struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// NewAltLookupBackend creates the alternate-endpoint backend
func NewAltLookupBackend(cfg Config, logger *slog.Logger) *AltLookupBackend {
	cfg.applyDefaults()
	return &AltLookupBackend{
		httpClient: newDirectClient(cfg.RenderTimeout),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetHTTPClient overrides the underlying HTTP client; used by tests
func (b *AltLookupBackend) SetHTTPClient(hc *http.Client) {
	b.httpClient = hc
}

func (b *AltLookupBackend) Name() string { return models.ViaAltLookup }

// Verify asks the public endpoint whether the profile exists
func (b *AltLookupBackend) Verify(ctx context.Context, owner *models.Owner, username string) *models.CheckResult {
	exists, reason := b.probe(ctx, username)
	return &models.CheckResult{Exists: exists, CheckedVia: models.ViaAltLookup, Reason: reason}
}

// probe performs the request and classifies the response; shared with the
// alternate-endpoint fallback heuristic.
func (b *AltLookupBackend) probe(ctx context.Context, username string) (models.Existence, string) {
	endpoint := fmt.Sprintf(b.cfg.AltLookupURL, url.QueryEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.ExistenceUnknown, models.ReasonLookupFailed
	}
	req.Header.Set("User-Agent", renderUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-IG-App-ID", webAppID)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.logger.Warn("alt lookup call failed", slog.String("username", username), slog.Any("error", err))
		return models.ExistenceUnknown, models.ReasonLookupFailed
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return models.ExistenceFalse, ""
	case http.StatusForbidden, http.StatusTooManyRequests:
		return models.ExistenceUnknown, models.ReasonBlocked
	case http.StatusOK:
		var body struct {
			Data struct {
				User *struct {
					Username string `json:"username"`
				} `json:"user"`
			} `json:"data"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxRenderBody)).Decode(&body); err != nil {
			return models.ExistenceUnknown, models.ReasonLookupFailed
		}
		if body.Data.User == nil {
			return models.ExistenceFalse, ""
		}
		return models.ExistenceTrue, ""
	default:
		return models.ExistenceUnknown, models.ReasonLookupFailed
	}
}

// App identifier the public web client sends; the endpoint rejects requests
// without it.
const webAppID = "936619743392459"
