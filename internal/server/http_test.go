package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"loandesk/backend/internal/audit"
	auditdomain "loandesk/backend/internal/audit/domain"
	identityservice "loandesk/backend/internal/identity/service"
	loanbuyerdomain "loandesk/backend/internal/loanbuyer/domain"
	loanbuyerrepo "loandesk/backend/internal/loanbuyer/repository"
	"loandesk/backend/internal/observability/metrics"
	"loandesk/backend/internal/ownership"
	"loandesk/backend/internal/platform/rbac"
	"loandesk/backend/internal/policy/engine"
	"loandesk/backend/internal/security"
	"loandesk/backend/internal/session"
	"loandesk/backend/internal/session/sessiontest"
	userdomain "loandesk/backend/internal/user/domain"
)

type memActivity struct {
	mu      sync.Mutex
	entries []*auditdomain.ActivityLog
}

func (m *memActivity) Create(ctx context.Context, a *auditdomain.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.entries) + 1)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memActivity) List(ctx context.Context, f auditdomain.ListFilter) ([]*auditdomain.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*auditdomain.ActivityLog, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memActivity) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memActivity) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action+" "+string(e.Status))
	}
	return out
}

type memEmployees map[string]*userdomain.Employee

func (m memEmployees) GetByNationalID(ctx context.Context, nid string) (*userdomain.Employee, error) {
	return m[nid], nil
}

type testServer struct {
	srv      *httptest.Server
	activity *memActivity
	buyers   *loanbuyerrepo.MemoryRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	hasher := security.NewHasher(4)
	hash, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	employees := memEmployees{
		"1000000001": {ID: 1, FullName: "Admin", NationalID: "1000000001", PasswordHash: hash, Role: "admin", Status: userdomain.StatusActive},
		"2000000002": {ID: 2, FullName: "Broker A", NationalID: "2000000002", PasswordHash: hash, Role: "broker", Status: userdomain.StatusActive},
		"3000000003": {ID: 3, FullName: "Broker B", NationalID: "3000000003", PasswordHash: hash, Role: "broker", Status: userdomain.StatusActive},
	}

	m := metrics.New()
	activity := &memActivity{}
	auditLogger := audit.NewLogger(activity, nil, audit.Options{QueueSize: 0, Metrics: m})
	store := session.NewStore(sessiontest.NewMemoryRepository(), session.DefaultTTL, nil, session.WithMetrics(m))
	auth := identityservice.NewAuthService(employees, store, hasher, auditLogger, m, nil)

	decider, err := engine.NewRegoDecider(ctx, engine.DefaultPolicy())
	if err != nil {
		t.Fatalf("NewRegoDecider: %v", err)
	}
	buyers := loanbuyerrepo.NewMemoryRepository()
	policy := rbac.NewPolicy(decider, ownership.Registry{ownership.KindLoanBuyer: buyers}, "admin", m, nil)

	h := NewRouter(HTTPDeps{
		Metrics:        m,
		Tokens:         store,
		Auth:           auth,
		LoginRateLimit: 100,
		Policy:         policy,
		Audit:          auditLogger,
		ActivityRepo:   activity,
		LoanBuyers:     buyers,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, activity: activity, buyers: buyers}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	resp, err := s.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, nid string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/auth/login", "", `{"national_id":"`+nid+`","password":"secret"}`)
	if code != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", nid, code, body)
	}
	tok, _ := body["token"].(string)
	if len(tok) != session.TokenLength {
		t.Fatalf("token length = %d", len(tok))
	}
	return tok
}

func TestRouter_AuthenticationGate(t *testing.T) {
	s := newTestServer(t)

	if code, _ := s.do(t, http.MethodGet, "/api/loan-buyers", "", ""); code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/loan-buyers", "deadbeef", ""); code != http.StatusUnauthorized {
		t.Errorf("unknown token: status = %d, want 401", code)
	}
	if code, body := s.do(t, http.MethodPost, "/api/auth/login", "", `{"national_id":"2000000002","password":"nope"}`); code != http.StatusUnauthorized || body["message"] != "Invalid credentials" {
		t.Errorf("bad password: status = %d body = %v", code, body)
	}

	tok := s.login(t, "2000000002")
	if code, body := s.do(t, http.MethodGet, "/api/auth/me", tok, ""); code != http.StatusOK {
		t.Errorf("me: status = %d body = %v", code, body)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/auth/logout", tok, ""); code != http.StatusOK {
		t.Errorf("logout: status = %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/auth/me", tok, ""); code != http.StatusUnauthorized {
		t.Errorf("after logout: status = %d, want 401", code)
	}
}

func TestRouter_AdminOrOwner(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "1000000001")
	brokerA := s.login(t, "2000000002")
	brokerB := s.login(t, "3000000003")

	code, body := s.do(t, http.MethodPost, "/api/loan-buyers", brokerA, `{"first_name":"Sara","password":"x"}`)
	if code != http.StatusCreated {
		t.Fatalf("create: status = %d body = %v", code, body)
	}
	item, _ := body["item"].(map[string]any)
	if item["broker"] != "2000000002" || item["created_by_nid"] != "2000000002" {
		t.Errorf("owners = %v", item)
	}
	// A record created before ownership was tracked.
	s.buyers.Create(context.Background(), &loanbuyerdomain.LoanBuyer{FirstName: "Legacy"})

	testCases := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{"owner", brokerA, "/api/loan-buyers/1", http.StatusOK},
		{"non-owner", brokerB, "/api/loan-buyers/1", http.StatusForbidden},
		{"admin", admin, "/api/loan-buyers/1", http.StatusOK},
		{"non-owner missing", brokerB, "/api/loan-buyers/99", http.StatusNotFound},
		{"admin missing", admin, "/api/loan-buyers/99", http.StatusNotFound},
		{"malformed id", brokerB, "/api/loan-buyers/abc", http.StatusBadRequest},
		{"legacy record non-admin", brokerA, "/api/loan-buyers/2", http.StatusForbidden},
		{"legacy record admin", admin, "/api/loan-buyers/2", http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if code, body := s.do(t, http.MethodGet, tc.path, tc.token, ""); code != tc.want {
				t.Errorf("status = %d, want %d (body %v)", code, tc.want, body)
			}
		})
	}

	if code, _ := s.do(t, http.MethodDelete, "/api/loan-buyers/1", brokerB, ""); code != http.StatusForbidden {
		t.Errorf("non-owner delete: status = %d, want 403", code)
	}
	if code, _ := s.do(t, http.MethodDelete, "/api/loan-buyers/1", brokerA, ""); code != http.StatusOK {
		t.Errorf("owner delete: status = %d, want 200", code)
	}
}

func TestRouter_AuditTrail(t *testing.T) {
	s := newTestServer(t)
	brokerA := s.login(t, "2000000002")
	brokerB := s.login(t, "3000000003")

	s.do(t, http.MethodPost, "/api/loan-buyers", brokerA, `{"first_name":"Sara","password":"hunter2"}`)
	s.do(t, http.MethodGet, "/api/loan-buyers", brokerA, "")
	before := len(s.activity.actions())
	if code, _ := s.do(t, http.MethodPatch, "/api/loan-buyers/1", brokerB, `{"notes":"x"}`); code != http.StatusForbidden {
		t.Fatalf("non-owner patch: status = %d, want 403", code)
	}
	if code, _ := s.do(t, http.MethodDelete, "/api/loan-buyers/1", brokerB, ""); code != http.StatusForbidden {
		t.Fatalf("non-owner delete: status = %d, want 403", code)
	}
	if got := s.activity.actions()[before:]; len(got) != 0 {
		t.Fatalf("rejected mutations were audited: %v", got)
	}
	s.do(t, http.MethodPatch, "/api/loan-buyers/1", brokerA, `{"notes":"called"}`)

	got := s.activity.actions()
	want := []string{
		"login success",
		"login success",
		"POST /api/loan-buyers success",
		"PATCH /api/loan-buyers/1 success",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("activity = %v, want %v", got, want)
	}
	for _, e := range s.activity.entries {
		if strings.Contains(e.Details, "hunter2") {
			t.Errorf("password leaked into details: %q", e.Details)
		}
	}
}

func TestRouter_ActivityAdminOnly(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "1000000001")
	broker := s.login(t, "2000000002")

	if code, _ := s.do(t, http.MethodGet, "/api/activity", broker, ""); code != http.StatusForbidden {
		t.Errorf("broker: status = %d, want 403", code)
	}
	code, body := s.do(t, http.MethodGet, "/api/activity?date_from=2024-01-01", admin, "")
	if code != http.StatusOK {
		t.Fatalf("admin: status = %d body = %v", code, body)
	}
	if items, _ := body["items"].([]any); len(items) != 2 {
		t.Errorf("items = %d, want 2 login entries", len(items))
	}
	if code, _ := s.do(t, http.MethodGet, "/api/activity?date_from=01/01/2024", admin, ""); code != http.StatusBadRequest {
		t.Errorf("bad date: status = %d, want 400", code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if code, _ := s.do(t, http.MethodGet, path, "", ""); code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, code)
		}
	}
	resp, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}
