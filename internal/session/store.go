// Package session issues, validates and revokes opaque session tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"loandesk/backend/internal/observability/metrics"
	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/session/domain"
	"loandesk/backend/internal/session/repository"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 60 * time.Minute

// TokenLength is the length of every issued token in characters.
const TokenLength = 64

// DefaultRole is assigned to principals that carry no role.
const DefaultRole = "user"

// Store is the token store. It is safe for concurrent use; all state lives in the repository.
type Store struct {
	repo       repository.Repository
	defaultTTL time.Duration
	now        func() time.Time
	newToken   func() string
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	log        *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTokenGenerator replaces the random token source, for tests.
func WithTokenGenerator(gen func() string) Option {
	return func(s *Store) { s.newToken = gen }
}

// WithMetrics records issued and swept counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a Store over repo. A non-positive defaultTTL falls back to DefaultTTL.
func NewStore(repo repository.Repository, defaultTTL time.Duration, log *zap.Logger, opts ...Option) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		repo:       repo,
		defaultTTL: defaultTTL,
		now:        time.Now,
		newToken:   NewToken,
		tracer:     otel.Tracer("loandesk/session"),
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewToken returns 64 lowercase hex characters drawn from two random UUIDs.
func NewToken() string {
	a, b := uuid.New(), uuid.New()
	return strings.ReplaceAll(a.String(), "-", "") + strings.ReplaceAll(b.String(), "-", "")
}

// DefaultTTL returns the lifetime applied when callers pass zero.
func (s *Store) DefaultTTL() time.Duration { return s.defaultTTL }

// Issue creates a session for p that expires ttl from now (the default TTL when ttl <= 0).
func (s *Store) Issue(ctx context.Context, p domain.Principal, ttl time.Duration) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.Issue", trace.WithAttributes(attribute.Int64("user.id", p.UserID)))
	defer span.End()

	if p.UserID <= 0 || strings.TrimSpace(p.PrincipalID) == "" {
		return nil, apperr.BadRequest("principal is incomplete")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	role := p.Role
	if role == "" {
		role = DefaultRole
	}
	now := s.now().UTC()
	sess := &domain.Session{
		Token:       s.newToken(),
		UserID:      p.UserID,
		PrincipalID: p.PrincipalID,
		DisplayName: p.DisplayName,
		Role:        role,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, fmt.Errorf("issue session: %w: %v", apperr.ErrStorageUnavailable, err)
	}
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.Inc()
	}
	return sess, nil
}

// Validate resolves token to an identity. It returns (nil, nil) when the token is empty,
// unknown or expired. When extend is true a live session's expiry moves to now+ttl, never backwards.
func (s *Store) Validate(ctx context.Context, token string, extend bool, ttl time.Duration) (*domain.Identity, error) {
	if token == "" {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "session.Validate", trace.WithAttributes(attribute.Bool("session.extend", extend)))
	defer span.End()

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now().UTC()

	var (
		sess *domain.Session
		err  error
	)
	if extend {
		sess, err = s.repo.Touch(ctx, token, now, now.Add(ttl))
	} else {
		sess, err = s.repo.GetActive(ctx, token, now)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("validate session: %w: %v", apperr.ErrStorageUnavailable, err)
	}
	if !sess.Alive(now) {
		return nil, nil
	}
	span.SetAttributes(attribute.Int64("user.id", sess.UserID))
	return sess.Identity(), nil
}

// Revoke deletes token. Revoking an unknown or empty token succeeds.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "session.Revoke")
	defer span.End()

	if err := s.repo.Delete(ctx, token); err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke session: %w: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// SweepExpired deletes every session expired at the current time and returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "session.SweepExpired")
	defer span.End()

	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("sweep sessions: %w: %v", apperr.ErrStorageUnavailable, err)
	}
	if s.metrics != nil && n > 0 {
		s.metrics.SessionsSweptTotal.Add(float64(n))
	}
	span.SetAttributes(attribute.Int64("session.swept", n))
	return n, nil
}

// IsStorageError reports whether err came from the backing store rather than from caller input.
func IsStorageError(err error) bool {
	return errors.Is(err, apperr.ErrStorageUnavailable)
}
