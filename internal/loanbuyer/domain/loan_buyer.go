package domain

import (
	"strings"
	"time"

	"loandesk/backend/internal/platform/apperr"
)

// DefaultProcessingStatus is assigned to new records.
const DefaultProcessingStatus = "request_registered"

// LoanBuyer is a customer record owned by the broker assigned to it or by its creator.
type LoanBuyer struct {
	ID               int64
	FirstName        string
	LastName         string
	NationalID       string
	Phone            string
	ProcessingStatus string
	Notes            string
	LoanID           *int64
	Broker           string
	CreatedByName    string
	CreatedByNID     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Owners returns the non-empty owner fields of b.
func (b *LoanBuyer) Owners() []string {
	var out []string
	for _, v := range []string{b.Broker, b.CreatedByNID} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Normalize trims text fields and fills the default processing status.
func (b *LoanBuyer) Normalize() error {
	b.FirstName = strings.TrimSpace(b.FirstName)
	b.LastName = strings.TrimSpace(b.LastName)
	b.NationalID = strings.TrimSpace(b.NationalID)
	b.Phone = strings.TrimSpace(b.Phone)
	b.Broker = strings.TrimSpace(b.Broker)
	if b.ProcessingStatus = strings.TrimSpace(b.ProcessingStatus); b.ProcessingStatus == "" {
		b.ProcessingStatus = DefaultProcessingStatus
	}
	if len(b.NationalID) > 10 {
		return apperr.BadRequest("national_id must be at most 10 characters")
	}
	return nil
}

// Patch holds the fields of a partial update; nil fields are left unchanged.
type Patch struct {
	FirstName        *string
	LastName         *string
	Phone            *string
	ProcessingStatus *string
	Notes            *string
	LoanID           *int64
	Broker           *string
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.ProcessingStatus == nil &&
		p.Notes == nil && p.LoanID == nil && p.Broker == nil
}
