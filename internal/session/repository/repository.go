package repository

import (
	"context"
	"time"

	"loandesk/backend/internal/session/domain"
)

// Repository defines persistence for session tokens. Every method is a single round trip.
// Lookups return (nil, nil) for tokens that are unknown or dead at now; errors are
// reserved for storage failures.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetActive returns the session for token if its expiry is after now.
	GetActive(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	// Touch moves the expiry of a live session forward to expiresAt (never backwards)
	// and returns the updated session.
	Touch(ctx context.Context, token string, now, expiresAt time.Time) (*domain.Session, error)
	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes every session whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
