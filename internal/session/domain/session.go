package domain

import "time"

// Principal is the verified user record a session is issued for.
type Principal struct {
	UserID      int64
	PrincipalID string // national identifier
	DisplayName string
	Role        string
}

// Session is a persisted opaque token with a snapshot of its principal taken at issue time.
// The snapshot is never rewritten; a role change takes effect on the next login.
type Session struct {
	Token       string
	UserID      int64
	PrincipalID string
	DisplayName string
	Role        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Alive reports whether the session is still valid at now. A session whose expiry is at or
// before now is dead even if its row has not been swept yet.
func (s *Session) Alive(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// Identity returns the request-scoped identity derived from the session snapshot.
func (s *Session) Identity() *Identity {
	if s == nil {
		return nil
	}
	return &Identity{
		UserID:      s.UserID,
		PrincipalID: s.PrincipalID,
		DisplayName: s.DisplayName,
		Role:        s.Role,
		Token:       s.Token,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID      int64
	PrincipalID string
	DisplayName string
	Role        string
	// Token is the caller's own session token; logout revokes it.
	Token     string
	ExpiresAt time.Time
}
