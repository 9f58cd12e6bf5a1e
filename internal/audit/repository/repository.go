package repository

import (
	"context"
	"time"

	"loandesk/backend/internal/audit/domain"
)

// Repository defines persistence for activity logs. Entries are append-only; the only
// deletion is the retention sweep.
type Repository interface {
	// Create inserts a and sets its ID and CreatedAt.
	Create(ctx context.Context, a *domain.ActivityLog) error
	// List returns entries matching f, newest first.
	List(ctx context.Context, f domain.ListFilter) ([]*domain.ActivityLog, error)
	// DeleteOlderThan removes entries created before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
