package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ukudarovv/instachecker-sub000/internal/database"
	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// SessionRepository defines persistence for owner sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Session, error)
	// GetCurrent returns the most-recently-used active, non-expired session
	// for the owner, or models.ErrNotFound.
	GetCurrent(ctx context.Context, ownerID string) (*models.Session, error)
	UpdateCookies(ctx context.Context, id string, cookies string) error
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
	SetNeedsRefresh(ctx context.Context, id string, needsRefresh bool) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// SessionRepositoryImpl implements SessionRepository on pgx
type SessionRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) SessionRepository {
	return &SessionRepositoryImpl{pool: db.Pool}
}

const sessionColumns = `id, owner_id, cookies, password, active, needs_refresh, last_used_at, expires_at, created_at, updated_at`

func scanSessionRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Session, error) {
	var session models.Session
	var password *string
	var lastUsedAt, expiresAt *time.Time

	err := scanner.Scan(
		&session.ID,
		&session.OwnerID,
		&session.Cookies,
		&password,
		&session.Active,
		&session.NeedsRefresh,
		&lastUsedAt,
		&expiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if password != nil {
		session.Password = *password
	}
	session.LastUsedAt = lastUsedAt
	session.ExpiresAt = expiresAt

	return &session, nil
}

// Create stores a new session
func (r *SessionRepositoryImpl) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, owner_id, cookies, password, active, needs_refresh, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.OwnerID,
		session.Cookies,
		session.Password,
		session.Active,
		session.NeedsRefresh,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	return scanSessionRow(r.pool.QueryRow(ctx, query, id))
}

// ListByOwner retrieves all sessions for an owner, most recently used first
func (r *SessionRepositoryImpl) ListByOwner(ctx context.Context, ownerID string) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE owner_id = $1
		ORDER BY last_used_at DESC NULLS LAST, created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// GetCurrent selects the one session used for deep verification
func (r *SessionRepositoryImpl) GetCurrent(ctx context.Context, ownerID string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE owner_id = $1
			AND active = TRUE
			AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY last_used_at DESC NULLS LAST, created_at DESC
		LIMIT 1
	`

	return scanSessionRow(r.pool.QueryRow(ctx, query, ownerID))
}

// UpdateCookies replaces the encrypted cookie payload after a refresh
func (r *SessionRepositoryImpl) UpdateCookies(ctx context.Context, id string, cookies string) error {
	query := `UPDATE sessions SET cookies = $1, needs_refresh = FALSE, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, cookies, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// MarkUsed stamps the session's last_used_at
func (r *SessionRepositoryImpl) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	query := `UPDATE sessions SET last_used_at = $1, updated_at = $2 WHERE id = $3`

	_, err := r.pool.Exec(ctx, query, usedAt, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// SetNeedsRefresh flags a session whose render bounced to a login surface
func (r *SessionRepositoryImpl) SetNeedsRefresh(ctx context.Context, id string, needsRefresh bool) error {
	query := `UPDATE sessions SET needs_refresh = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, needsRefresh, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetActive toggles a session
func (r *SessionRepositoryImpl) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE sessions SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, active, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Delete removes a session
func (r *SessionRepositoryImpl) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
