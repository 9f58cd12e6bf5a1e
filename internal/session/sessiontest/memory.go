// Package sessiontest provides an in-memory session repository for unit tests only.
package sessiontest

import (
	"context"
	"sync"
	"time"

	"loandesk/backend/internal/session/domain"
)

// MemoryRepository mirrors the Postgres repository semantics in a map.
// Err, when set, is returned by every call.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	Err      error
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]domain.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sessions[s.Token] = *s
	return nil
}

func (r *MemoryRepository) GetActive(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	s, ok := r.sessions[token]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) Touch(ctx context.Context, token string, now, expiresAt time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	s, ok := r.sessions[token]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, nil
	}
	if expiresAt.After(s.ExpiresAt) {
		s.ExpiresAt = expiresAt
		r.sessions[token] = s
	}
	return &s, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	delete(r.sessions, token)
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for token, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, live or not.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock fixed at t.
func NewClock(t time.Time) *Clock { return &Clock{t: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
