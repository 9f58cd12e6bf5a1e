package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_CountersIncrement(t *testing.T) {
	m := New()
	m.AuthzDecisionsTotal.WithLabelValues("admin_or_owner", "deny").Inc()
	m.AuthzDecisionsTotal.WithLabelValues("admin_or_owner", "deny").Inc()

	if got := testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("admin_or_owner", "deny")); got != 2 {
		t.Errorf("authz deny = %v, want 2", got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.TokensIssuedTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "auth_tokens_issued_total 1") {
		t.Errorf("metrics output missing auth_tokens_issued_total:\n%s", body)
	}
}
