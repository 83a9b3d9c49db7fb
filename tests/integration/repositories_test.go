package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up test database: %v\n", err)
		os.Exit(1)
	}
	testDB = db

	code := m.Run()

	_ = testDB.Teardown(ctx)
	os.Exit(code)
}

func createOwner(t *testing.T, ctx context.Context, repo repositories.OwnerRepository) *models.Owner {
	t.Helper()
	now := time.Now()
	owner := &models.Owner{
		ID:        uuid.New().String(),
		Email:     fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		Mode:      models.ModeAPISession,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, owner))
	return owner
}

func TestOwnerRepository(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	repo := repositories.NewOwnerRepository(testDB.DB)

	owner := createOwner(t, ctx, repo)

	got, err := repo.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.Email, got.Email)
	assert.Equal(t, models.ModeAPISession, got.Mode)
	assert.Empty(t, got.FallbackOrder)

	require.NoError(t, repo.UpdateMode(ctx, owner.ID, models.ModeAPIProxy))
	require.NoError(t, repo.UpdateFallbackOrder(ctx, owner.ID, []string{"mirror", "browser"}))

	got, err = repo.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModeAPIProxy, got.Mode)
	assert.Equal(t, []string{"mirror", "browser"}, got.FallbackOrder)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = repo.GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTargetRepositoryPendingLifecycle(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	ownerRepo := repositories.NewOwnerRepository(testDB.DB)
	targetRepo := repositories.NewTargetRepository(testDB.DB)

	owner := createOwner(t, ctx, ownerRepo)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		target := &models.Target{
			ID:        uuid.New().String(),
			OwnerID:   owner.ID,
			Username:  fmt.Sprintf("user%d", i),
			Status:    models.TargetPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base,
		}
		require.NoError(t, targetRepo.Create(ctx, target))
		ids = append(ids, target.ID)
	}

	// Oldest-created first
	pending, err := targetRepo.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[2], pending[2].ID)

	limited, err := targetRepo.ListPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	// Done targets leave the scheduling set
	require.NoError(t, targetRepo.MarkDone(ctx, ids[0]))
	pending, err = targetRepo.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	checkedAt := time.Now()
	require.NoError(t, targetRepo.RecordCheck(ctx, ids[1], checkedAt, models.ReasonLookupFailed))
	got, err := targetRepo.GetByID(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, models.ReasonLookupFailed, got.LastReason)
	require.NotNil(t, got.LastCheckedAt)

	// Duplicate username for the same owner is rejected
	dup := &models.Target{
		ID:        uuid.New().String(),
		OwnerID:   owner.ID,
		Username:  "user1",
		Status:    models.TargetPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	assert.ErrorIs(t, targetRepo.Create(ctx, dup), models.ErrConflict)
}

func TestTargetRepositoryCreateBatch(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	ownerRepo := repositories.NewOwnerRepository(testDB.DB)
	targetRepo := repositories.NewTargetRepository(testDB.DB)

	owner := createOwner(t, ctx, ownerRepo)
	now := time.Now()
	mk := func(ownerID, username string) *models.Target {
		return &models.Target{
			ID: uuid.New().String(), OwnerID: ownerID, Username: username,
			Status: models.TargetPending, CreatedAt: now, UpdatedAt: now,
		}
	}

	require.NoError(t, targetRepo.Create(ctx, mk(owner.ID, "taken")))

	// Duplicates are skipped row by row, the rest of the batch lands
	inserted, err := targetRepo.CreateBatch(ctx, []*models.Target{
		mk(owner.ID, "fresh1"),
		mk(owner.ID, "taken"),
		mk(owner.ID, "fresh2"),
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.Equal(t, "fresh1", inserted[0].Username)
	assert.Equal(t, "fresh2", inserted[1].Username)

	pending, err := targetRepo.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	// A hard failure mid-batch rolls the whole batch back
	_, err = targetRepo.CreateBatch(ctx, []*models.Target{
		mk(owner.ID, "fresh3"),
		mk(uuid.New().String(), "orphan"), // no such owner
	})
	require.Error(t, err)

	pending, err = targetRepo.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3, "nothing from the failed batch is persisted")
}

func TestProxyRepositoryHealthPersistence(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	ownerRepo := repositories.NewOwnerRepository(testDB.DB)
	proxyRepo := repositories.NewProxyRepository(testDB.DB)

	owner := createOwner(t, ctx, ownerRepo)

	now := time.Now()
	proxy := &models.Proxy{
		ID:        uuid.New().String(),
		OwnerID:   owner.ID,
		Scheme:    "socks5",
		Host:      "10.0.0.1",
		Port:      1080,
		Active:    true,
		Priority:  3,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, proxyRepo.Create(ctx, proxy))

	proxy.Used = 5
	proxy.Succeeded = 4
	proxy.FailStreak = 1
	until := now.Add(10 * time.Minute).UTC().Truncate(time.Millisecond)
	proxy.CooldownUntil = &until
	require.NoError(t, proxyRepo.UpdateHealth(ctx, proxy))

	got, err := proxyRepo.GetByID(ctx, proxy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Used)
	assert.Equal(t, int64(4), got.Succeeded)
	assert.Equal(t, 1, got.FailStreak)
	require.NotNil(t, got.CooldownUntil)
	assert.WithinDuration(t, until, *got.CooldownUntil, time.Second)

	// SetPriority clamps out-of-range values
	require.NoError(t, proxyRepo.SetPriority(ctx, proxy.ID, 99))
	got, err = proxyRepo.GetByID(ctx, proxy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProxyPriorityMax, got.Priority)

	require.NoError(t, proxyRepo.SetActive(ctx, proxy.ID, false))
	got, err = proxyRepo.GetByID(ctx, proxy.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestLookupKeyRepositoryUsage(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	ownerRepo := repositories.NewOwnerRepository(testDB.DB)
	keyRepo := repositories.NewLookupKeyRepository(testDB.DB)

	owner := createOwner(t, ctx, ownerRepo)

	now := time.Now()
	fresh := &models.LookupKey{
		ID: uuid.New().String(), OwnerID: owner.ID, Secret: "a",
		RefDate: now, Working: true, CreatedAt: now, UpdatedAt: now,
	}
	used := &models.LookupKey{
		ID: uuid.New().String(), OwnerID: owner.ID, Secret: "b",
		RefDate: now, Working: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, keyRepo.Create(ctx, fresh))
	require.NoError(t, keyRepo.Create(ctx, used))

	usedAt := now.Add(-time.Minute)
	used.QtyReq = 7
	used.LastUsedAt = &usedAt
	require.NoError(t, keyRepo.UpdateUsage(ctx, used))

	// Never-used keys come first (least recently used ordering)
	keys, err := keyRepo.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, fresh.ID, keys[0].ID)
	assert.Equal(t, 7, keys[1].QtyReq)
}

func TestSessionRepositoryCurrentSelection(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	ownerRepo := repositories.NewOwnerRepository(testDB.DB)
	sessionRepo := repositories.NewSessionRepository(testDB.DB)

	owner := createOwner(t, ctx, ownerRepo)

	now := time.Now()
	expired := now.Add(-time.Hour)
	mk := func(active bool, expiresAt *time.Time) *models.Session {
		s := &models.Session{
			ID: uuid.New().String(), OwnerID: owner.ID, Cookies: "[]",
			Active: active, ExpiresAt: expiresAt, CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, sessionRepo.Create(ctx, s))
		return s
	}

	mk(false, nil)      // inactive
	mk(true, &expired)  // expired
	older := mk(true, nil)
	newer := mk(true, nil)

	olderUse := now.Add(-30 * time.Minute)
	newerUse := now.Add(-time.Minute)
	require.NoError(t, sessionRepo.MarkUsed(ctx, older.ID, olderUse))
	require.NoError(t, sessionRepo.MarkUsed(ctx, newer.ID, newerUse))

	current, err := sessionRepo.GetCurrent(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, current.ID, "most recently used valid session wins")

	// A bounced render flags the session; a cookie refresh clears the flag
	require.NoError(t, sessionRepo.SetNeedsRefresh(ctx, newer.ID, true))
	got, err := sessionRepo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.True(t, got.NeedsRefresh)

	require.NoError(t, sessionRepo.UpdateCookies(ctx, newer.ID, `[{"name":"sessionid","value":"fresh"}]`))
	got, err = sessionRepo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsRefresh)
	assert.Equal(t, `[{"name":"sessionid","value":"fresh"}]`, got.Cookies)
}
