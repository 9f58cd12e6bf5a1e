package interceptors

import (
	"context"

	sessiondomain "loandesk/backend/internal/session/domain"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the authenticated identity.
// Handlers, policies and the audit middleware read it via IdentityFrom.
func WithIdentity(ctx context.Context, id *sessiondomain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity from context and true if set; otherwise nil, false.
func IdentityFrom(ctx context.Context) (*sessiondomain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*sessiondomain.Identity)
	return id, ok && id != nil
}

// GetUserID returns the authenticated user id from context and true if set; otherwise 0, false.
func GetUserID(ctx context.Context) (int64, bool) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return 0, false
	}
	return id.UserID, true
}
