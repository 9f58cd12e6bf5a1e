package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"loandesk/backend/internal/loanbuyer/domain"
)

const buyerColumns = `id, first_name, last_name, national_id, phone, processing_status, notes, loan_id,
	broker, created_by_name, created_by_nid, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a loan buyer repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, b *domain.LoanBuyer) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO loan_buyers (first_name, last_name, national_id, phone, processing_status, notes,
		   loan_id, broker, created_by_name, created_by_nid)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		b.FirstName, b.LastName, b.NationalID, b.Phone, b.ProcessingStatus, nullString(b.Notes),
		nullInt64(b.LoanID), nullString(b.Broker), nullString(b.CreatedByName), nullString(b.CreatedByNID),
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.LoanBuyer, error) {
	return scanBuyer(r.db.QueryRowContext(ctx, `SELECT `+buyerColumns+` FROM loan_buyers WHERE id = $1`, id))
}

func (r *PostgresRepository) List(ctx context.Context, owner string) ([]*domain.LoanBuyer, error) {
	q := `SELECT ` + buyerColumns + ` FROM loan_buyers`
	var args []any
	if owner != "" {
		q += ` WHERE broker = $1 OR created_by_nid = $1`
		args = append(args, owner)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.LoanBuyer
	for rows.Next() {
		b, err := scanBuyer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, p domain.Patch) (*domain.LoanBuyer, error) {
	if p.Empty() {
		return r.GetByID(ctx, id)
	}
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.FirstName != nil {
		set("first_name", strings.TrimSpace(*p.FirstName))
	}
	if p.LastName != nil {
		set("last_name", strings.TrimSpace(*p.LastName))
	}
	if p.Phone != nil {
		set("phone", strings.TrimSpace(*p.Phone))
	}
	if p.ProcessingStatus != nil {
		set("processing_status", strings.TrimSpace(*p.ProcessingStatus))
	}
	if p.Notes != nil {
		set("notes", nullString(*p.Notes))
	}
	if p.LoanID != nil {
		set("loan_id", *p.LoanID)
	}
	if p.Broker != nil {
		set("broker", nullString(strings.TrimSpace(*p.Broker)))
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE loan_buyers SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), buyerColumns)
	return scanBuyer(r.db.QueryRowContext(ctx, q, args...))
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loan_buyers WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuyer(row scanner) (*domain.LoanBuyer, error) {
	var (
		b             domain.LoanBuyer
		notes         sql.NullString
		broker        sql.NullString
		createdByName sql.NullString
		createdBy     sql.NullString
		loanID        sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.FirstName, &b.LastName, &b.NationalID, &b.Phone, &b.ProcessingStatus,
		&notes, &loanID, &broker, &createdByName, &createdBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.Notes = notes.String
	b.Broker = broker.String
	b.CreatedByName = createdByName.String
	b.CreatedByNID = createdBy.String
	if loanID.Valid {
		v := loanID.Int64
		b.LoanID = &v
	}
	return &b, nil
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
