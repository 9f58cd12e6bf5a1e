package domain

import (
	"errors"
	"strings"
	"time"
)

// Employee is a principal that can log in. PasswordHash is a bcrypt hash; legacy rows may
// still hold plaintext until migrated.
type Employee struct {
	ID           int64
	FullName     string
	NationalID   string
	PasswordHash string
	Role         string
	Status       Status
	CreatedAt    time.Time
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// MaxNationalIDLen is the width of employees.national_id.
const MaxNationalIDLen = 10

// CanLogin reports whether the employee account is active.
func (e *Employee) CanLogin() bool {
	return e != nil && e.Status == StatusActive
}

// Validate validates the employee for persistence. Returns an error describing the first validation failure.
func (e *Employee) Validate() error {
	e.NationalID = strings.TrimSpace(e.NationalID)
	e.FullName = strings.TrimSpace(e.FullName)
	if e.NationalID == "" {
		return errors.New("national id is required")
	}
	if len(e.NationalID) > MaxNationalIDLen {
		return errors.New("national id is too long")
	}
	if e.FullName == "" {
		return errors.New("full name is required")
	}
	if e.PasswordHash == "" {
		return errors.New("password is required")
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if e.Role == "" {
		e.Role = "employee"
	}
	return nil
}

// Credential is the stored password of one employee, used by the password migration.
type Credential struct {
	EmployeeID   int64
	PasswordHash string
}
