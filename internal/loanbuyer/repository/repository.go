package repository

import (
	"context"

	"loandesk/backend/internal/loanbuyer/domain"
)

// Repository persists loan buyers.
type Repository interface {
	Create(ctx context.Context, b *domain.LoanBuyer) error
	// GetByID returns nil, nil when the record does not exist.
	GetByID(ctx context.Context, id int64) (*domain.LoanBuyer, error)
	// List returns records newest first. A non-empty owner limits the result to records
	// where owner is the broker or the creator.
	List(ctx context.Context, owner string) ([]*domain.LoanBuyer, error)
	// Update applies p and returns the updated record, or nil, nil when it does not exist.
	Update(ctx context.Context, id int64, p domain.Patch) (*domain.LoanBuyer, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
