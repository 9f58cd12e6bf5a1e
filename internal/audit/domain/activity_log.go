package domain

import "time"

// Status is the outcome recorded for an activity entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
)

// MaxActionLen is the column width of activity_logs.action.
const MaxActionLen = 191

// ActivityLog is one append-only audit entry. UserID is nil when no principal was resolved
// (e.g. a failed login for an unknown national id).
type ActivityLog struct {
	ID        int64
	UserID    *int64
	UserName  string
	Action    string
	Details   string
	Status    Status
	CreatedAt time.Time
}

// Valid reports whether s is one of the three recorded statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusError:
		return true
	}
	return false
}

// StatusForCode classifies an HTTP status code: below 400 is success, anything else is error.
func StatusForCode(code int) Status {
	if code > 0 && code < 400 {
		return StatusSuccess
	}
	return StatusError
}

// ListFilter selects activity entries for review. Zero values mean "no filter".
type ListFilter struct {
	UserID *int64
	From   time.Time
	To     time.Time
	Limit  int
}
