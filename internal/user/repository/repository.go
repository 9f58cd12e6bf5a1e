package repository

import (
	"context"

	"loandesk/backend/internal/user/domain"
)

// Repository defines persistence for employees.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Employee, error)
	GetByNationalID(ctx context.Context, nationalID string) (*domain.Employee, error)
	// Create inserts e and sets e.ID. It returns created=false without error if the national id already exists.
	Create(ctx context.Context, e *domain.Employee) (created bool, err error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	ListCredentials(ctx context.Context) ([]domain.Credential, error)
}
