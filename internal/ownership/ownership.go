// Package ownership resolves which principals own a protected business record.
package ownership

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"loandesk/backend/internal/platform/apperr"
)

// Kind names a resource type that supports ownership checks. The set is closed.
type Kind string

const (
	KindLoan      Kind = "loan"
	KindLoanBuyer Kind = "loan_buyer"
)

// Resolver returns the principal ids that own the record with the given id.
// It returns an error wrapping apperr.ErrNotFound when the record does not exist and
// apperr.ErrBadRequest when id is malformed. An empty result means no non-admin owner.
type Resolver interface {
	ResolveOwner(ctx context.Context, id string) ([]string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id string) ([]string, error)

func (f ResolverFunc) ResolveOwner(ctx context.Context, id string) ([]string, error) {
	return f(ctx, id)
}

// ErrUnknownKind is returned for kinds with no registered resolver. It wraps ErrForbidden
// so an unregistered kind denies instead of allowing.
var ErrUnknownKind = fmt.Errorf("ownership: unknown resource kind: %w", apperr.ErrForbidden)

// Registry maps each Kind to its resolver.
type Registry map[Kind]Resolver

// Resolve dispatches to the resolver registered for kind.
func (r Registry) Resolve(ctx context.Context, kind Kind, id string) ([]string, error) {
	res, ok := r[kind]
	if !ok || res == nil {
		return nil, ErrUnknownKind
	}
	return res.ResolveOwner(ctx, id)
}

// ParseID parses a positive numeric record id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("Invalid resource ID")
	}
	return id, nil
}
