package ownership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"loandesk/backend/internal/platform/apperr"
)

// columnResolver reads owner columns of one row; NULL and empty values are skipped.
type columnResolver struct {
	db    *sql.DB
	query string
	cols  int
}

// NewLoanResolver resolves loan ownership from loans.created_by_nid.
func NewLoanResolver(db *sql.DB) Resolver {
	return &columnResolver{db: db, query: `SELECT created_by_nid FROM loans WHERE id = $1`, cols: 1}
}

// NewLoanBuyerResolver resolves loan-buyer ownership from loan_buyers.broker and created_by_nid.
func NewLoanBuyerResolver(db *sql.DB) Resolver {
	return &columnResolver{db: db, query: `SELECT broker, created_by_nid FROM loan_buyers WHERE id = $1`, cols: 2}
}

// NewPostgresRegistry returns a Registry with every Kind backed by db.
func NewPostgresRegistry(db *sql.DB) Registry {
	return Registry{
		KindLoan:      NewLoanResolver(db),
		KindLoanBuyer: NewLoanBuyerResolver(db),
	}
}

func (r *columnResolver) ResolveOwner(ctx context.Context, id string) ([]string, error) {
	n, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	vals := make([]sql.NullString, r.cols)
	dest := make([]any, r.cols)
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := r.db.QueryRowContext(ctx, r.query, n).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("resolve owner: %w: %v", apperr.ErrStorageUnavailable, err)
	}
	owners := make([]string, 0, r.cols)
	for _, v := range vals {
		if v.Valid && v.String != "" {
			owners = append(owners, v.String)
		}
	}
	return owners, nil
}
