package verify_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
	"github.com/ukudarovv/instachecker-sub000/internal/verify"
)

// MockSessionRepository implements repositories.SessionRepository for testing
type MockSessionRepository struct {
	current      *models.Session
	currentErr   error
	needsRefresh map[string]bool
	usedAt       map[string]time.Time
}

func newMockSessionRepo(current *models.Session, err error) *MockSessionRepository {
	return &MockSessionRepository{
		current:      current,
		currentErr:   err,
		needsRefresh: make(map[string]bool),
		usedAt:       make(map[string]time.Time),
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Session, error) {
	return nil, nil
}

func (m *MockSessionRepository) GetCurrent(ctx context.Context, ownerID string) (*models.Session, error) {
	if m.currentErr != nil {
		return nil, m.currentErr
	}
	return m.current, nil
}

func (m *MockSessionRepository) UpdateCookies(ctx context.Context, id string, cookies string) error {
	return nil
}

func (m *MockSessionRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	m.usedAt[id] = usedAt
	return nil
}

func (m *MockSessionRepository) SetNeedsRefresh(ctx context.Context, id string, needsRefresh bool) error {
	m.needsRefresh[id] = needsRefresh
	return nil
}

func (m *MockSessionRepository) SetActive(ctx context.Context, id string, active bool) error {
	return nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error { return nil }

// stubRenderer returns a canned classification or error
type stubRenderer struct {
	result *verify.RenderResult
	err    error
}

func (r *stubRenderer) Render(ctx context.Context, client *http.Client, profileURL string) (*verify.RenderResult, error) {
	return r.result, r.err
}

func activeSession() *models.Session {
	return &models.Session{
		ID:      "s1",
		OwnerID: "o1",
		Cookies: `[{"name":"sessionid","value":"abc"}]`,
		Active:  true,
	}
}

func sessionBackend(repo *MockSessionRepository, renderer verify.Renderer) *verify.SessionBackend {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return verify.NewSessionBackend(repo, vault.Passthrough{}, renderer, verify.Config{}, logger)
}

func sessionOwner() *models.Owner {
	return &models.Owner{ID: "o1", Mode: models.ModeAPISession, Active: true}
}

func TestSessionVerifyNoCurrentSession(t *testing.T) {
	repo := newMockSessionRepo(nil, models.ErrNotFound)
	backend := sessionBackend(repo, &stubRenderer{})

	result := backend.Verify(context.Background(), sessionOwner(), "someuser")

	assert.Equal(t, models.ExistenceUnknown, result.Exists)
	assert.Equal(t, models.ReasonSessionInvalid, result.Reason)
}

func TestSessionVerifyRenderFailure(t *testing.T) {
	repo := newMockSessionRepo(activeSession(), nil)
	backend := sessionBackend(repo, &stubRenderer{err: errors.New("connection reset")})

	result := backend.Verify(context.Background(), sessionOwner(), "someuser")

	assert.Equal(t, models.ExistenceUnknown, result.Exists)
	assert.Equal(t, models.ReasonRenderFailed, result.Reason, "a failed render is a render problem, not a lookup problem")
	assert.Equal(t, models.ViaSession, result.CheckedVia)
}

func TestSessionVerifyProfileFound(t *testing.T) {
	repo := newMockSessionRepo(activeSession(), nil)
	backend := sessionBackend(repo, &stubRenderer{
		result: &verify.RenderResult{Class: verify.PageProfile, SnapshotPath: "/tmp/snap.html"},
	})

	result := backend.Verify(context.Background(), sessionOwner(), "someuser")

	assert.Equal(t, models.ExistenceTrue, result.Exists)
	assert.Equal(t, models.ViaSession, result.CheckedVia)
	assert.Equal(t, "/tmp/snap.html", result.EvidencePath)
	assert.Contains(t, repo.usedAt, "s1", "a completed render stamps session usage")
}

func TestSessionVerifyLoginBounceFlagsRefresh(t *testing.T) {
	repo := newMockSessionRepo(activeSession(), nil)
	backend := sessionBackend(repo, &stubRenderer{
		result: &verify.RenderResult{Class: verify.PageLogin},
	})

	result := backend.Verify(context.Background(), sessionOwner(), "someuser")

	assert.Equal(t, models.ExistenceUnknown, result.Exists)
	assert.Equal(t, models.ReasonSessionInvalid, result.Reason)
	assert.True(t, repo.needsRefresh["s1"], "a login bounce flags the session for refresh")
}
