package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"loandesk/backend/internal/audit"
	auditdomain "loandesk/backend/internal/audit/domain"
	"loandesk/backend/internal/observability/metrics"
	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/security"
	sessiondomain "loandesk/backend/internal/session/domain"
	userdomain "loandesk/backend/internal/user/domain"
)

// ErrInvalidCredentials covers unknown principals, inactive accounts and wrong passwords alike.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)

// LoginResult is returned to the client after a successful login. Token is the only secret.
type LoginResult struct {
	Token       string
	Role        string
	DisplayName string
	ExpiresAt   time.Time
}

// UserRepo is the minimal employee repository needed by the auth service.
type UserRepo interface {
	GetByNationalID(ctx context.Context, nationalID string) (*userdomain.Employee, error)
}

// SessionStore is the token store surface used by login and logout.
type SessionStore interface {
	Issue(ctx context.Context, p sessiondomain.Principal, ttl time.Duration) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, token string) error
}

// AuthService verifies credentials, issues session tokens and records login activity.
type AuthService struct {
	users   UserRepo
	tokens  SessionStore
	hasher  *security.Hasher
	audit   audit.AuditLogger
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewAuthService returns an AuthService. auditLogger and m may be nil.
func NewAuthService(users UserRepo, tokens SessionStore, hasher *security.Hasher, auditLogger audit.AuditLogger, m *metrics.Metrics, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{users: users, tokens: tokens, hasher: hasher, audit: auditLogger, metrics: m, log: log}
}

// Login verifies nationalID and password and issues a session with the default TTL.
// Missing fields are a bad request; every credential failure is ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, nationalID, password, clientIP string) (*LoginResult, error) {
	nationalID = strings.TrimSpace(nationalID)
	password = strings.TrimSpace(password)
	if nationalID == "" || password == "" {
		return nil, apperr.BadRequest("national_id and password are required")
	}

	emp, err := s.users.GetByNationalID(ctx, nationalID)
	if err != nil {
		s.log.Error("login lookup failed", zap.Error(err))
		s.countLogin("error")
		return nil, fmt.Errorf("login: %w: %v", apperr.ErrStorageUnavailable, err)
	}
	if emp == nil {
		s.hasher.Burn(password)
		s.fail(ctx, nil, "", "unknown principal", clientIP)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(emp.PasswordHash, password) {
		s.fail(ctx, &emp.ID, emp.FullName, "bad password", clientIP)
		return nil, ErrInvalidCredentials
	}
	if !emp.CanLogin() {
		s.fail(ctx, &emp.ID, emp.FullName, "account "+string(emp.Status), clientIP)
		return nil, ErrInvalidCredentials
	}

	sess, err := s.tokens.Issue(ctx, sessiondomain.Principal{
		UserID:      emp.ID,
		PrincipalID: emp.NationalID,
		DisplayName: emp.FullName,
		Role:        emp.Role,
	}, 0)
	if err != nil {
		s.log.Error("issue session failed", zap.Int64("user_id", emp.ID), zap.Error(err))
		s.countLogin("error")
		return nil, err
	}

	s.countLogin("success")
	s.logEvent(ctx, &emp.ID, emp.FullName, audit.ActionLogin, clientDetails(clientIP), auditdomain.StatusSuccess)
	return &LoginResult{
		Token:       sess.Token,
		Role:        sess.Role,
		DisplayName: sess.DisplayName,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

// Logout revokes the caller's own token. Revoking an already-revoked token succeeds.
func (s *AuthService) Logout(ctx context.Context, id *sessiondomain.Identity) error {
	if id == nil {
		return apperr.ErrUnauthorized
	}
	if err := s.tokens.Revoke(ctx, id.Token); err != nil {
		if errors.Is(err, apperr.ErrStorageUnavailable) {
			s.log.Error("revoke session failed", zap.Int64("user_id", id.UserID), zap.Error(err))
		}
		return err
	}
	uid := id.UserID
	s.logEvent(ctx, &uid, id.DisplayName, audit.ActionLogout, "", auditdomain.StatusSuccess)
	return nil
}

func (s *AuthService) fail(ctx context.Context, userID *int64, userName, reason, clientIP string) {
	s.countLogin("failure")
	details := "reason=" + reason
	if d := clientDetails(clientIP); d != "" {
		details += ", " + d
	}
	s.logEvent(ctx, userID, userName, audit.ActionLogin, details, auditdomain.StatusFailure)
}

func (s *AuthService) logEvent(ctx context.Context, userID *int64, userName, action, details string, status auditdomain.Status) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, userName, action, details, status)
	}
}

func (s *AuthService) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.AuthLoginsTotal.WithLabelValues(result).Inc()
	}
}

func clientDetails(ip string) string {
	if ip == "" {
		return ""
	}
	return "ip=" + ip
}
