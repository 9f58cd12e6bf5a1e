package engine

import "context"

// RoleInput is the input for a role-membership decision.
type RoleInput struct {
	Role         string   `json:"role"`
	AllowedRoles []string `json:"allowed_roles"`
}

// OwnerInput is the input for an admin-or-owner decision. Owners is empty when the
// caller only wants to know whether the admin bypass applies.
type OwnerInput struct {
	Role        string   `json:"role"`
	AdminRole   string   `json:"admin_role"`
	PrincipalID string   `json:"principal_id"`
	Owners      []string `json:"owners"`
}

// Decider evaluates authorization decisions. Callers must treat an error as a denial.
type Decider interface {
	AllowRole(ctx context.Context, in RoleInput) (bool, error)
	AllowOwner(ctx context.Context, in OwnerInput) (bool, error)
}
