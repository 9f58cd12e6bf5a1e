package rbac

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/policy/engine"
	"loandesk/backend/internal/server/interceptors"
)

// CheckRoles ensures the caller is authenticated and holds one of roles. Matching is exact;
// the admin role passes only when listed. An empty roles list denies everyone.
// Returns apperr.ErrUnauthorized, apperr.ErrForbidden, or nil.
func (p *Policy) CheckRoles(ctx context.Context, roles ...string) error {
	return p.checkRoles(ctx, "roles", roles)
}

// RequireRoles returns middleware enforcing CheckRoles.
func (p *Policy) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return p.roleMiddleware("roles", roles)
}

// RequireAdmin returns middleware that admits only the admin role.
func (p *Policy) RequireAdmin() func(http.Handler) http.Handler {
	return p.roleMiddleware("admin", []string{p.adminRole})
}

func (p *Policy) roleMiddleware(name string, roles []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := p.checkRoles(r.Context(), name, roles); err != nil {
				apperr.Write(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p *Policy) checkRoles(ctx context.Context, name string, roles []string) error {
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		p.record(name, "unauthenticated")
		return apperr.ErrUnauthorized
	}
	allowed, err := p.decider.AllowRole(ctx, engine.RoleInput{Role: id.Role, AllowedRoles: roles})
	if err != nil {
		p.log.Error("role decision failed", zap.Int64("user_id", id.UserID), zap.Error(err))
		p.record(name, "error")
		return apperr.ErrForbidden
	}
	if !allowed {
		p.record(name, "deny")
		return apperr.ErrForbidden
	}
	p.record(name, "allow")
	return nil
}
