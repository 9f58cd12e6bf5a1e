package interceptors

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"loandesk/backend/internal/platform/apperr"
	sessiondomain "loandesk/backend/internal/session/domain"
)

// DefaultTokenHeader carries the opaque session token.
const DefaultTokenHeader = "X-Auth-Token"

// TokenValidator resolves a token to an identity; (nil, nil) means unknown or expired.
type TokenValidator interface {
	Validate(ctx context.Context, token string, extend bool, ttl time.Duration) (*sessiondomain.Identity, error)
}

// Authenticate returns middleware that requires a live session token in header.
// A missing token is rejected without a store lookup. Each accepted request slides the
// session expiry forward by the store's default TTL. Store failures are 500, never 401.
func Authenticate(tokens TokenValidator, header string, log *zap.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultTokenHeader
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(header))
			if token == "" {
				apperr.Write(w, apperr.ErrUnauthorized)
				return
			}
			id, err := tokens.Validate(r.Context(), token, true, 0)
			if err != nil {
				log.Error("token validation failed", zap.String("path", r.URL.Path), zap.Error(err))
				apperr.Write(w, err)
				return
			}
			if id == nil {
				apperr.Write(w, apperr.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// TokenFromRequest returns the trimmed token carried in header, or "".
func TokenFromRequest(r *http.Request, header string) string {
	if header == "" {
		header = DefaultTokenHeader
	}
	return strings.TrimSpace(r.Header.Get(header))
}
