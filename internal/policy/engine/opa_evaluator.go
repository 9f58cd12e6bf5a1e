package engine

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// PolicyPackage is the Rego package holding the authorization rules.
const PolicyPackage = "loandesk.authz"

//go:embed authz.rego
var defaultRegoPolicy string

// DefaultPolicy returns the built-in Rego module.
func DefaultPolicy() string { return defaultRegoPolicy }

// RegoDecider evaluates decisions with OPA. Queries are prepared once at construction and are
// safe for concurrent use.
type RegoDecider struct {
	allowRole  rego.PreparedEvalQuery
	allowOwner rego.PreparedEvalQuery
}

// NewRegoDecider compiles module (the built-in policy when empty) and prepares both queries.
// The module must declare package loandesk.authz with rules allow_role and allow_owner.
func NewRegoDecider(ctx context.Context, module string) (*RegoDecider, error) {
	if module == "" {
		module = defaultRegoPolicy
	}
	prepare := func(rule string) (rego.PreparedEvalQuery, error) {
		return rego.New(
			rego.Query("data."+PolicyPackage+"."+rule),
			rego.Module("authz.rego", module),
		).PrepareForEval(ctx)
	}
	role, err := prepare("allow_role")
	if err != nil {
		return nil, fmt.Errorf("prepare allow_role: %w", err)
	}
	owner, err := prepare("allow_owner")
	if err != nil {
		return nil, fmt.Errorf("prepare allow_owner: %w", err)
	}
	return &RegoDecider{allowRole: role, allowOwner: owner}, nil
}

// AllowRole reports whether in.Role is one of in.AllowedRoles.
func (d *RegoDecider) AllowRole(ctx context.Context, in RoleInput) (bool, error) {
	return evalBool(ctx, d.allowRole, map[string]any{
		"role":          in.Role,
		"allowed_roles": nonNil(in.AllowedRoles),
	})
}

// AllowOwner reports whether the caller is the admin or one of in.Owners.
func (d *RegoDecider) AllowOwner(ctx context.Context, in OwnerInput) (bool, error) {
	return evalBool(ctx, d.allowOwner, map[string]any{
		"role":         in.Role,
		"admin_role":   in.AdminRole,
		"principal_id": in.PrincipalID,
		"owners":       nonNil(in.Owners),
	})
}

// HealthCheck evaluates fixed inputs with known answers. Returns nil when the engine works.
func (d *RegoDecider) HealthCheck(ctx context.Context) error {
	ok, err := d.AllowRole(ctx, RoleInput{Role: "admin", AllowedRoles: []string{"admin"}})
	if err != nil {
		return fmt.Errorf("eval allow_role: %w", err)
	}
	if !ok {
		return errors.New("policy: allow_role denied a listed role")
	}
	ok, err = d.AllowOwner(ctx, OwnerInput{Role: "agent", AdminRole: "admin", PrincipalID: "p"})
	if err != nil {
		return fmt.Errorf("eval allow_owner: %w", err)
	}
	if ok {
		return errors.New("policy: allow_owner allowed a non-owner")
	}
	return nil
}

func evalBool(ctx context.Context, q rego.PreparedEvalQuery, input map[string]any) (bool, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy: non-boolean result %T", rs[0].Expressions[0].Value)
	}
	return v, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
