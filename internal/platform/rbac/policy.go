// Package rbac enforces role and ownership policies on authenticated requests.
package rbac

import (
	"context"

	"go.uber.org/zap"

	"loandesk/backend/internal/observability/metrics"
	"loandesk/backend/internal/ownership"
	"loandesk/backend/internal/policy/engine"
)

// DefaultAdminRole bypasses ownership checks. It gets no implicit role membership.
const DefaultAdminRole = "admin"

// OwnerResolver resolves the owners of a record of the given kind.
type OwnerResolver interface {
	Resolve(ctx context.Context, kind ownership.Kind, id string) ([]string, error)
}

// Policy evaluates role and ownership requirements through a Decider.
type Policy struct {
	decider   engine.Decider
	owners    OwnerResolver
	adminRole string
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewPolicy returns a Policy. owners may be nil when no route uses ownership checks;
// every ownership check then denies.
func NewPolicy(decider engine.Decider, owners OwnerResolver, adminRole string, m *metrics.Metrics, log *zap.Logger) *Policy {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Policy{decider: decider, owners: owners, adminRole: adminRole, metrics: m, log: log}
}

// AdminRole returns the configured admin role.
func (p *Policy) AdminRole() string { return p.adminRole }

func (p *Policy) record(policy, result string) {
	if p.metrics != nil {
		p.metrics.AuthzDecisionsTotal.WithLabelValues(policy, result).Inc()
	}
}
