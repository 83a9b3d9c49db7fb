package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
)

// Result is the outcome of one lookup call. Lookup never fails hard: every
// problem is folded into an unknown result with a reason code so the caller
// can retry on a later cycle.
type Result struct {
	Exists models.Existence
	Reason string
}

// Config holds the lookup client knobs
type Config struct {
	BaseURL       string
	DailyLimit    int           // per-key daily request ceiling
	FailThreshold int           // consecutive failures before a key is marked dead
	Timeout       time.Duration // per-call hard timeout
}

// Client wraps the external lookup API behind per-owner key rotation and
// daily quota enforcement. It mutates only key counters; target status is
// out of its hands.
type Client struct {
	keys       repositories.LookupKeyRepository
	cipher     vault.Cipher
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a lookup client
func NewClient(keys repositories.LookupKeyRepository, cipher vault.Cipher, cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		keys:       keys,
		cipher:     cipher,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the client clock; used by tests
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// SetHTTPClient overrides the underlying HTTP client; used by tests
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Lookup checks one identifier against the external API using the owner's
// least-recently-used eligible key.
func (c *Client) Lookup(ctx context.Context, ownerID, username string) Result {
	key, err := c.pickKey(ctx, ownerID)
	if err != nil {
		return Result{Exists: models.ExistenceUnknown, Reason: models.ReasonNoEligibleKey}
	}

	existence, callOK := c.call(ctx, key, username)
	c.settleKey(ctx, key, callOK)

	if !callOK {
		return Result{Exists: models.ExistenceUnknown, Reason: models.ReasonLookupFailed}
	}
	return Result{Exists: existence}
}

// pickKey returns the first eligible key, applying the daily counter reset
func (c *Client) pickKey(ctx context.Context, ownerID string) (*models.LookupKey, error) {
	keys, err := c.keys.ListByOwner(ctx, ownerID)
	if err != nil {
		c.logger.Error("failed to list lookup keys", slog.String("owner_id", ownerID), slog.Any("error", err))
		return nil, err
	}

	now := c.now()
	for _, key := range keys {
		if !key.Eligible(now, c.cfg.DailyLimit) {
			continue
		}
		if !models.SameDay(key.RefDate, now) {
			key.QtyReq = 0
			key.RefDate = now
		}
		return key, nil
	}

	return nil, models.ErrNotFound
}

// call performs the outbound request. The second return value reports
// whether the call itself completed in a classifiable way.
func (c *Client) call(ctx context.Context, key *models.LookupKey, username string) (models.Existence, bool) {
	secret, err := c.cipher.Decrypt(key.Secret)
	if err != nil {
		c.logger.Error("failed to decrypt lookup key", slog.String("key_id", key.ID), slog.Any("error", err))
		return models.ExistenceUnknown, false
	}

	endpoint := fmt.Sprintf("%s/users/%s", c.cfg.BaseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.ExistenceUnknown, false
	}
	req.Header.Set("Authorization", "Bearer "+string(secret))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("lookup call failed", slog.String("key_id", key.ID), slog.Any("error", err))
		return models.ExistenceUnknown, false
	}
	defer resp.Body.Close()

	return classify(resp)
}

// classify maps an HTTP response to a tri-state existence signal
func classify(resp *http.Response) (models.Existence, bool) {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ExistenceFalse, true
	case resp.StatusCode == http.StatusOK:
		var body struct {
			Username string `json:"username"`
			Exists   *bool  `json:"exists"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return models.ExistenceUnknown, false
		}
		if body.Exists != nil && !*body.Exists {
			return models.ExistenceFalse, true
		}
		if body.Username != "" || (body.Exists != nil && *body.Exists) {
			return models.ExistenceTrue, true
		}
		return models.ExistenceUnknown, false
	default:
		// Timeouts, 5xx and anything unrecognizable are soft failures
		return models.ExistenceUnknown, false
	}
}

// settleKey charges the quota and maintains the working flag
func (c *Client) settleKey(ctx context.Context, key *models.LookupKey, callOK bool) {
	now := c.now()
	key.RefDate = now
	key.LastUsedAt = &now

	if callOK {
		// Only completed calls consume quota
		key.QtyReq++
		key.Working = true
		key.FailCount = 0
	} else {
		key.FailCount++
		if key.FailCount >= c.cfg.FailThreshold {
			key.Working = false
			c.logger.Warn("lookup key marked dead",
				slog.String("key_id", key.ID),
				slog.Int("consecutive_failures", key.FailCount),
			)
		}
	}

	if err := c.keys.UpdateUsage(ctx, key); err != nil {
		c.logger.Error("failed to persist lookup key usage", slog.String("key_id", key.ID), slog.Any("error", err))
	}
}
