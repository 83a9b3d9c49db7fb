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

// TargetRepository defines persistence for check targets
type TargetRepository interface {
	Create(ctx context.Context, target *models.Target) error
	// CreateBatch stores a batch of targets in one transaction. Rows whose
	// (owner, username) pair already exists are skipped; the returned slice
	// holds the targets actually inserted. Any other failure rolls the whole
	// batch back.
	CreateBatch(ctx context.Context, targets []*models.Target) ([]*models.Target, error)
	GetByID(ctx context.Context, id string) (*models.Target, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Target, error)
	// ListPending returns pending targets across all owners, oldest first.
	// limit <= 0 means unbounded (periodic full sweep).
	ListPending(ctx context.Context, limit int) ([]*models.Target, error)
	MarkDone(ctx context.Context, id string) error
	RecordCheck(ctx context.Context, id string, checkedAt time.Time, reason string) error
	Delete(ctx context.Context, id string) error
}

// TargetRepositoryImpl implements TargetRepository on pgx
type TargetRepositoryImpl struct {
	db   *database.DB
	pool *pgxpool.Pool
}

// NewTargetRepository creates a new target repository
func NewTargetRepository(db *database.DB) TargetRepository {
	return &TargetRepositoryImpl{db: db, pool: db.Pool}
}

const targetColumns = `id, owner_id, username, status, last_checked_at, last_reason, created_at, updated_at`

func scanTargetRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Target, error) {
	var target models.Target
	var lastCheckedAt *time.Time
	var lastReason *string

	err := scanner.Scan(
		&target.ID,
		&target.OwnerID,
		&target.Username,
		&target.Status,
		&lastCheckedAt,
		&lastReason,
		&target.CreatedAt,
		&target.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	target.LastCheckedAt = lastCheckedAt
	if lastReason != nil {
		target.LastReason = *lastReason
	}

	return &target, nil
}

func scanTargetRows(rows pgx.Rows) ([]*models.Target, error) {
	defer rows.Close()

	targets := make([]*models.Target, 0)

	for rows.Next() {
		target, err := scanTargetRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return targets, nil
}

// Create stores a new target
func (r *TargetRepositoryImpl) Create(ctx context.Context, target *models.Target) error {
	query := `
		INSERT INTO targets (id, owner_id, username, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		target.ID,
		target.OwnerID,
		target.Username,
		target.Status,
		target.CreatedAt,
		target.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// CreateBatch stores a batch of targets atomically, skipping duplicates
func (r *TargetRepositoryImpl) CreateBatch(ctx context.Context, targets []*models.Target) ([]*models.Target, error) {
	inserted := make([]*models.Target, 0, len(targets))
	if len(targets) == 0 {
		return inserted, nil
	}

	query := `
		INSERT INTO targets (id, owner_id, username, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, username) DO NOTHING
	`

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, target := range targets {
			tag, err := tx.Exec(ctx, query,
				target.ID,
				target.OwnerID,
				target.Username,
				target.Status,
				target.CreatedAt,
				target.UpdatedAt,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
			if tag.RowsAffected() > 0 {
				inserted = append(inserted, target)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return inserted, nil
}

// GetByID retrieves a target by its ID
func (r *TargetRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM targets WHERE id = $1`

	return scanTargetRow(r.pool.QueryRow(ctx, query, id))
}

// ListByOwner retrieves an owner's targets, newest first (paginated)
func (r *TargetRepositoryImpl) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Target, error) {
	query := `
		SELECT ` + targetColumns + `
		FROM targets
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}

	return scanTargetRows(rows)
}

// ListPending retrieves pending targets across owners, oldest-created first
func (r *TargetRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*models.Target, error) {
	query := `
		SELECT ` + targetColumns + `
		FROM targets
		WHERE status = $1
		ORDER BY created_at ASC
	`

	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.pool.Query(ctx, query+` LIMIT $2`, models.TargetPending, limit)
	} else {
		rows, err = r.pool.Query(ctx, query, models.TargetPending)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending targets: %w", err)
	}

	return scanTargetRows(rows)
}

// MarkDone transitions a target out of the scheduling set
func (r *TargetRepositoryImpl) MarkDone(ctx context.Context, id string) error {
	query := `UPDATE targets SET status = $1, updated_at = $2 WHERE id = $3`

	_, err := r.pool.Exec(ctx, query, models.TargetDone, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// RecordCheck stores the time and reason of the latest check attempt
func (r *TargetRepositoryImpl) RecordCheck(ctx context.Context, id string, checkedAt time.Time, reason string) error {
	query := `UPDATE targets SET last_checked_at = $1, last_reason = $2, updated_at = $3 WHERE id = $4`

	_, err := r.pool.Exec(ctx, query, checkedAt, reason, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// Delete removes a target
func (r *TargetRepositoryImpl) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM targets WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
