package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ukudarovv/instachecker-sub000/internal/database"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// ProxyRepository defines persistence for owner proxies
type ProxyRepository interface {
	Create(ctx context.Context, proxy *models.Proxy) error
	GetByID(ctx context.Context, id string) (*models.Proxy, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Proxy, error)
	// UpdateHealth persists the registry-managed counters
	UpdateHealth(ctx context.Context, proxy *models.Proxy) error
	SetActive(ctx context.Context, id string, active bool) error
	SetPriority(ctx context.Context, id string, priority int) error
	Delete(ctx context.Context, id string) error
}

// ProxyRepositoryImpl implements ProxyRepository on pgx
type ProxyRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewProxyRepository creates a new proxy repository
func NewProxyRepository(db *database.DB) ProxyRepository {
	return &ProxyRepositoryImpl{pool: db.Pool}
}

const proxyColumns = `id, owner_id, scheme, host, port, username, password, active, priority,
		used, succeeded, fail_streak, cooldowns, cooldown_until, last_checked_at, created_at, updated_at`

func scanProxyRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Proxy, error) {
	var proxy models.Proxy
	var username, password *string
	var cooldownUntil, lastCheckedAt *time.Time

	err := scanner.Scan(
		&proxy.ID,
		&proxy.OwnerID,
		&proxy.Scheme,
		&proxy.Host,
		&proxy.Port,
		&username,
		&password,
		&proxy.Active,
		&proxy.Priority,
		&proxy.Used,
		&proxy.Succeeded,
		&proxy.FailStreak,
		&proxy.Cooldowns,
		&cooldownUntil,
		&lastCheckedAt,
		&proxy.CreatedAt,
		&proxy.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if username != nil {
		proxy.Username = *username
	}
	if password != nil {
		proxy.Password = *password
	}
	proxy.CooldownUntil = cooldownUntil
	proxy.LastCheckedAt = lastCheckedAt

	return &proxy, nil
}

func scanProxyRows(rows pgx.Rows) ([]*models.Proxy, error) {
	defer rows.Close()

	proxies := make([]*models.Proxy, 0)

	for rows.Next() {
		proxy, err := scanProxyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		proxies = append(proxies, proxy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return proxies, nil
}

// Create stores a new proxy
func (r *ProxyRepositoryImpl) Create(ctx context.Context, proxy *models.Proxy) error {
	query := `
		INSERT INTO proxies (id, owner_id, scheme, host, port, username, password, active, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		proxy.ID,
		proxy.OwnerID,
		proxy.Scheme,
		proxy.Host,
		proxy.Port,
		proxy.Username,
		proxy.Password,
		proxy.Active,
		proxy.Priority,
		proxy.CreatedAt,
		proxy.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// GetByID retrieves a proxy by ID
func (r *ProxyRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies WHERE id = $1`

	return scanProxyRow(r.pool.QueryRow(ctx, query, id))
}

// ListByOwner retrieves all proxies owned by one owner
func (r *ProxyRepositoryImpl) ListByOwner(ctx context.Context, ownerID string) ([]*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies WHERE owner_id = $1 ORDER BY priority ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proxies: %w", err)
	}

	return scanProxyRows(rows)
}

// UpdateHealth persists usage/success counters, streak and cooldown state
func (r *ProxyRepositoryImpl) UpdateHealth(ctx context.Context, proxy *models.Proxy) error {
	query := `
		UPDATE proxies
		SET used = $1, succeeded = $2, fail_streak = $3, cooldowns = $4,
			cooldown_until = $5, last_checked_at = $6, updated_at = $7
		WHERE id = $8
	`

	_, err := r.pool.Exec(ctx, query,
		proxy.Used,
		proxy.Succeeded,
		proxy.FailStreak,
		proxy.Cooldowns,
		proxy.CooldownUntil,
		proxy.LastCheckedAt,
		time.Now(),
		proxy.ID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// SetActive toggles a proxy; a manual owner action outside registry policy
func (r *ProxyRepositoryImpl) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE proxies SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, active, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetPriority stores an already-clamped priority value
func (r *ProxyRepositoryImpl) SetPriority(ctx context.Context, id string, priority int) error {
	query := `UPDATE proxies SET priority = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, models.ClampPriority(priority), time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Delete removes a proxy
func (r *ProxyRepositoryImpl) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM proxies WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
