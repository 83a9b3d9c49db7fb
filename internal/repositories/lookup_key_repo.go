package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ukudarovv/instachecker-sub000/internal/database"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// LookupKeyRepository defines persistence for lookup API keys
type LookupKeyRepository interface {
	Create(ctx context.Context, key *models.LookupKey) error
	GetByID(ctx context.Context, id string) (*models.LookupKey, error)
	// ListByOwner returns the owner's keys least-recently-used first
	ListByOwner(ctx context.Context, ownerID string) ([]*models.LookupKey, error)
	// UpdateUsage persists quota counter, working flag and usage timestamps
	UpdateUsage(ctx context.Context, key *models.LookupKey) error
	Delete(ctx context.Context, id string) error
}

// LookupKeyRepositoryImpl implements LookupKeyRepository on pgx
type LookupKeyRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewLookupKeyRepository creates a new lookup key repository
func NewLookupKeyRepository(db *database.DB) LookupKeyRepository {
	return &LookupKeyRepositoryImpl{pool: db.Pool}
}

const lookupKeyColumns = `id, owner_id, secret, qty_req, ref_date, working, fail_count, last_used_at, created_at, updated_at`

func scanLookupKeyRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.LookupKey, error) {
	var key models.LookupKey
	var lastUsedAt *time.Time

	err := scanner.Scan(
		&key.ID,
		&key.OwnerID,
		&key.Secret,
		&key.QtyReq,
		&key.RefDate,
		&key.Working,
		&key.FailCount,
		&lastUsedAt,
		&key.CreatedAt,
		&key.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	key.LastUsedAt = lastUsedAt

	return &key, nil
}

// Create stores a new lookup key
func (r *LookupKeyRepositoryImpl) Create(ctx context.Context, key *models.LookupKey) error {
	query := `
		INSERT INTO lookup_keys (id, owner_id, secret, qty_req, ref_date, working, fail_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.OwnerID,
		key.Secret,
		key.QtyReq,
		key.RefDate,
		key.Working,
		key.FailCount,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// GetByID retrieves a key by ID
func (r *LookupKeyRepositoryImpl) GetByID(ctx context.Context, id string) (*models.LookupKey, error) {
	query := `SELECT ` + lookupKeyColumns + ` FROM lookup_keys WHERE id = $1`

	return scanLookupKeyRow(r.pool.QueryRow(ctx, query, id))
}

// ListByOwner retrieves an owner's keys, least-recently-used first
func (r *LookupKeyRepositoryImpl) ListByOwner(ctx context.Context, ownerID string) ([]*models.LookupKey, error) {
	query := `
		SELECT ` + lookupKeyColumns + `
		FROM lookup_keys
		WHERE owner_id = $1
		ORDER BY last_used_at ASC NULLS FIRST, created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lookup keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*models.LookupKey, 0)
	for rows.Next() {
		key, err := scanLookupKeyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lookup key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return keys, nil
}

// UpdateUsage persists the quota counter and probe state for a key
func (r *LookupKeyRepositoryImpl) UpdateUsage(ctx context.Context, key *models.LookupKey) error {
	query := `
		UPDATE lookup_keys
		SET qty_req = $1, ref_date = $2, working = $3, fail_count = $4, last_used_at = $5, updated_at = $6
		WHERE id = $7
	`

	_, err := r.pool.Exec(ctx, query,
		key.QtyReq,
		key.RefDate,
		key.Working,
		key.FailCount,
		key.LastUsedAt,
		time.Now(),
		key.ID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// Delete removes a key
func (r *LookupKeyRepositoryImpl) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM lookup_keys WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
