package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"loandesk/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an activity log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the entry. A zero CreatedAt is left to the column default.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.ActivityLog) error {
	var createdAt any
	if !a.CreatedAt.IsZero() {
		createdAt = a.CreatedAt
	}
	return r.db.QueryRowContext(ctx,
		`INSERT INTO activity_logs (user_id, user_name, action, details, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, now()))
		 RETURNING id, created_at`,
		nullInt64(a.UserID), nullString(a.UserName), a.Action, nullString(a.Details), string(a.Status), createdAt,
	).Scan(&a.ID, &a.CreatedAt)
}

// List returns entries matching f ordered by created_at descending. From is inclusive and To exclusive.
func (r *PostgresRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.ActivityLog, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	var q strings.Builder
	q.WriteString(`SELECT id, user_id, user_name, action, details, status, created_at FROM activity_logs`)
	if len(where) > 0 {
		q.WriteString(" WHERE ")
		q.WriteString(strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ActivityLog
	for rows.Next() {
		var (
			a        domain.ActivityLog
			userID   sql.NullInt64
			userName sql.NullString
			details  sql.NullString
			status   string
		)
		if err := rows.Scan(&a.ID, &userID, &userName, &a.Action, &details, &status, &a.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			id := userID.Int64
			a.UserID = &id
		}
		a.UserName = userName.String
		a.Details = details.String
		a.Status = domain.Status(status)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes entries created before cutoff and returns how many were removed.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
