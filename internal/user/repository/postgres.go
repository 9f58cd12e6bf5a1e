package repository

import (
	"context"
	"database/sql"
	"errors"

	"loandesk/backend/internal/user/domain"
)

const employeeColumns = `id, full_name, national_id, password, role, status, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an employee repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the employee for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Employee, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	return scanEmployee(row)
}

// GetByNationalID returns the employee with the given national id, or nil if not found.
func (r *PostgresRepository) GetByNationalID(ctx context.Context, nationalID string) (*domain.Employee, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE national_id = $1 LIMIT 1`, nationalID)
	return scanEmployee(row)
}

// Create inserts the employee unless its national id is taken.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Employee) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO employees (full_name, national_id, password, role, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (national_id) DO NOTHING
		 RETURNING id, created_at`,
		e.FullName, e.NationalID, e.PasswordHash, e.Role, string(e.Status),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE employees SET password = $2 WHERE id = $1`, id, hash)
	return err
}

// ListCredentials returns every employee's stored password.
func (r *PostgresRepository) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, password FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Credential
	for rows.Next() {
		var c domain.Credential
		if err := rows.Scan(&c.EmployeeID, &c.PasswordHash); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanEmployee(row *sql.Row) (*domain.Employee, error) {
	var (
		e      domain.Employee
		status string
	)
	err := row.Scan(&e.ID, &e.FullName, &e.NationalID, &e.PasswordHash, &e.Role, &status, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Status = domain.Status(status)
	return &e, nil
}
