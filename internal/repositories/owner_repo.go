package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/ukudarovv/instachecker-sub000/internal/database"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// OwnerRepository defines persistence for owners
type OwnerRepository interface {
	Create(ctx context.Context, owner *models.Owner) error
	GetByID(ctx context.Context, id string) (*models.Owner, error)
	ListActive(ctx context.Context) ([]*models.Owner, error)
	UpdateMode(ctx context.Context, id string, mode models.VerificationMode) error
	UpdateFallbackOrder(ctx context.Context, id string, order []string) error
}

// OwnerRepositoryImpl implements OwnerRepository on pgx
type OwnerRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewOwnerRepository creates a new owner repository
func NewOwnerRepository(db *database.DB) OwnerRepository {
	return &OwnerRepositoryImpl{pool: db.Pool}
}

const ownerColumns = `id, email, verification_mode, fallback_order, active, created_at, updated_at`

func scanOwnerRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Owner, error) {
	var owner models.Owner

	err := scanner.Scan(
		&owner.ID,
		&owner.Email,
		&owner.Mode,
		pq.Array(&owner.FallbackOrder),
		&owner.Active,
		&owner.CreatedAt,
		&owner.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &owner, nil
}

// Create stores a new owner
func (r *OwnerRepositoryImpl) Create(ctx context.Context, owner *models.Owner) error {
	query := `
		INSERT INTO owners (id, email, verification_mode, fallback_order, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		owner.ID,
		owner.Email,
		owner.Mode,
		pq.Array(owner.FallbackOrder),
		owner.Active,
		owner.CreatedAt,
		owner.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// GetByID retrieves an owner by ID
func (r *OwnerRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE id = $1`

	return scanOwnerRow(r.pool.QueryRow(ctx, query, id))
}

// ListActive retrieves all active owners
func (r *OwnerRepositoryImpl) ListActive(ctx context.Context) ([]*models.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE active = TRUE ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query owners: %w", err)
	}
	defer rows.Close()

	owners := make([]*models.Owner, 0)
	for rows.Next() {
		owner, err := scanOwnerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return owners, nil
}

// UpdateMode changes which verification backend the owner's checks use
func (r *OwnerRepositoryImpl) UpdateMode(ctx context.Context, id string, mode models.VerificationMode) error {
	query := `UPDATE owners SET verification_mode = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, mode, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateFallbackOrder changes the owner's fallback heuristic order
func (r *OwnerRepositoryImpl) UpdateFallbackOrder(ctx context.Context, id string, order []string) error {
	query := `UPDATE owners SET fallback_order = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, pq.Array(order), time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
