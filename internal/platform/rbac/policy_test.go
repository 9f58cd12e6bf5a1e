package rbac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"loandesk/backend/internal/observability/metrics"
	"loandesk/backend/internal/ownership"
	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/policy/engine"
	"loandesk/backend/internal/server/interceptors"
	sessiondomain "loandesk/backend/internal/session/domain"
)

// mockOwners implements OwnerResolver over a fixed table.
type mockOwners struct {
	owners map[string][]string
	err    error
	calls  int
}

func (m *mockOwners) Resolve(ctx context.Context, kind ownership.Kind, id string) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if kind != ownership.KindLoanBuyer {
		return nil, ownership.ErrUnknownKind
	}
	o, ok := m.owners[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

// failingDecider returns an error for every decision.
type failingDecider struct{}

func (failingDecider) AllowRole(ctx context.Context, in engine.RoleInput) (bool, error) {
	return true, errors.New("engine down")
}

func (failingDecider) AllowOwner(ctx context.Context, in engine.OwnerInput) (bool, error) {
	return true, errors.New("engine down")
}

func newPolicy(t *testing.T, owners OwnerResolver) (*Policy, *metrics.Metrics) {
	t.Helper()
	d, err := engine.NewRegoDecider(context.Background(), "")
	if err != nil {
		t.Fatalf("NewRegoDecider: %v", err)
	}
	m := metrics.New()
	return NewPolicy(d, owners, "", m, nil), m
}

func ctxAs(role, principal string) context.Context {
	return interceptors.WithIdentity(context.Background(), &sessiondomain.Identity{UserID: 1, Role: role, PrincipalID: principal})
}

func TestCheckRoles(t *testing.T) {
	p, m := newPolicy(t, nil)
	testCases := []struct {
		name  string
		ctx   context.Context
		roles []string
		want  error
	}{
		{"no identity", context.Background(), []string{"admin"}, apperr.ErrUnauthorized},
		{"listed", ctxAs("broker", "p"), []string{"admin", "broker"}, nil},
		{"not listed", ctxAs("broker", "p"), []string{"admin"}, apperr.ErrForbidden},
		{"admin needs listing", ctxAs("admin", "p"), []string{"broker"}, apperr.ErrForbidden},
		{"empty set", ctxAs("admin", "p"), nil, apperr.ErrForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.CheckRoles(tc.ctx, tc.roles...)
			if !errors.Is(err, tc.want) && !(err == nil && tc.want == nil) {
				t.Errorf("CheckRoles = %v, want %v", err, tc.want)
			}
		})
	}
	if got := testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("roles", "allow")); got != 1 {
		t.Errorf("allow decisions = %v, want 1", got)
	}
}

func TestCheckAdminOrOwner(t *testing.T) {
	owners := &mockOwners{owners: map[string][]string{
		"1": {"broker-nid", "creator-nid"},
		"2": {},
	}}
	p, _ := newPolicy(t, owners)

	testCases := []struct {
		name string
		ctx  context.Context
		kind ownership.Kind
		id   string
		want error
	}{
		{"no identity", context.Background(), ownership.KindLoanBuyer, "1", apperr.ErrUnauthorized},
		{"broker owns", ctxAs("broker", "broker-nid"), ownership.KindLoanBuyer, "1", nil},
		{"creator owns", ctxAs("employee", "creator-nid"), ownership.KindLoanBuyer, "1", nil},
		{"stranger", ctxAs("employee", "other"), ownership.KindLoanBuyer, "1", apperr.ErrForbidden},
		{"no owners is admin only", ctxAs("employee", "creator-nid"), ownership.KindLoanBuyer, "2", apperr.ErrForbidden},
		{"missing record", ctxAs("employee", "creator-nid"), ownership.KindLoanBuyer, "404", apperr.ErrNotFound},
		{"malformed id", ctxAs("employee", "creator-nid"), ownership.KindLoanBuyer, "abc", apperr.ErrBadRequest},
		{"unregistered kind", ctxAs("employee", "creator-nid"), ownership.KindLoan, "1", apperr.ErrForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.CheckAdminOrOwner(tc.ctx, tc.kind, tc.id)
			if tc.want == nil {
				if err != nil {
					t.Errorf("CheckAdminOrOwner = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("CheckAdminOrOwner = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCheckAdminOrOwner_AdminSkipsLookup(t *testing.T) {
	owners := &mockOwners{}
	p, _ := newPolicy(t, owners)
	for _, id := range []string{"1", "404", "abc"} {
		if err := p.CheckAdminOrOwner(ctxAs("admin", "a"), ownership.KindLoanBuyer, id); err != nil {
			t.Errorf("admin on %q: %v", id, err)
		}
	}
	if owners.calls != 0 {
		t.Errorf("resolver called %d times for admin, want 0", owners.calls)
	}
}

func TestCheckAdminOrOwner_StorageError(t *testing.T) {
	owners := &mockOwners{err: fmt.Errorf("resolve: %w", apperr.ErrStorageUnavailable)}
	p, _ := newPolicy(t, owners)
	err := p.CheckAdminOrOwner(ctxAs("employee", "x"), ownership.KindLoanBuyer, "1")
	if apperr.Status(err) != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apperr.Status(err))
	}
}

func TestDecisionErrorsFailClosed(t *testing.T) {
	p := NewPolicy(failingDecider{}, &mockOwners{}, "admin", nil, nil)
	if err := p.CheckRoles(ctxAs("admin", "a"), "admin"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("CheckRoles with failing engine = %v, want forbidden", err)
	}
	if err := p.CheckAdminOrOwner(ctxAs("admin", "a"), ownership.KindLoanBuyer, "1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("CheckAdminOrOwner with failing engine = %v, want forbidden", err)
	}
}

func TestMiddleware(t *testing.T) {
	owners := &mockOwners{owners: map[string][]string{"5": {"owner"}}}
	p, _ := newPolicy(t, owners)

	r := chi.NewRouter()
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	r.With(p.RequireAdmin()).Get("/admin", ok)
	r.With(p.RequireRoles("broker")).Get("/brokers", ok)
	r.With(p.RequireAdminOrOwner(ownership.KindLoanBuyer, "buyerID")).Get("/buyers/{buyerID}", ok)

	testCases := []struct {
		path string
		ctx  context.Context
		want int
	}{
		{"/admin", context.Background(), http.StatusUnauthorized},
		{"/admin", ctxAs("broker", "b"), http.StatusForbidden},
		{"/admin", ctxAs("admin", "a"), http.StatusNoContent},
		{"/brokers", ctxAs("broker", "b"), http.StatusNoContent},
		{"/buyers/5", ctxAs("broker", "owner"), http.StatusNoContent},
		{"/buyers/5", ctxAs("broker", "other"), http.StatusForbidden},
		{"/buyers/6", ctxAs("broker", "owner"), http.StatusNotFound},
		{"/buyers/x", ctxAs("broker", "owner"), http.StatusBadRequest},
	}
	for _, tc := range testCases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil).WithContext(tc.ctx)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("GET %s: status = %d, want %d", tc.path, rec.Code, tc.want)
		}
	}
}
