package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"loandesk/backend/internal/session/domain"
)

const sessionColumns = `token, user_id, national_id, full_name, role, issued_at, expires_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by the auth_tokens table.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the session. The token must be set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.Token, s.UserID, s.PrincipalID,
		sql.NullString{String: s.DisplayName, Valid: s.DisplayName != ""},
		s.Role, s.IssuedAt, s.ExpiresAt,
	)
	return err
}

// GetActive returns the session for token, or nil if it is unknown or expired at now.
func (r *PostgresRepository) GetActive(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM auth_tokens WHERE token = $1 AND expires_at > $2`,
		token, now,
	)
	return scanSession(row)
}

// Touch extends a live session in one statement. GREATEST keeps concurrent extenders from
// moving the expiry backwards.
func (r *PostgresRepository) Touch(ctx context.Context, token string, now, expiresAt time.Time) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE auth_tokens SET expires_at = GREATEST(expires_at, $3)
		 WHERE token = $1 AND expires_at > $2
		 RETURNING `+sessionColumns,
		token, now, expiresAt,
	)
	return scanSession(row)
}

// Delete removes the session for token if present.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token)
	return err
}

// DeleteExpired removes sessions whose expiry is at or before now and returns how many were removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var (
		s        domain.Session
		fullName sql.NullString
	)
	err := row.Scan(&s.Token, &s.UserID, &s.PrincipalID, &fullName, &s.Role, &s.IssuedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.DisplayName = fullName.String
	return &s, nil
}
