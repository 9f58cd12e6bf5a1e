package interceptors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"loandesk/backend/internal/observability/metrics"
)

func TestRequestTelemetry_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(RequestTelemetry(nil, m, map[string]bool{"/healthz": true}))
	r.Get("/api/loan-buyers/{buyerID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/loan-buyers/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/loan-buyers/{buyerID}", "418"))
	if got != 1 {
		t.Errorf("requests for pattern = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.HTTPRequestsTotal); n != 1 {
		t.Errorf("series = %d, want 1 (skipped path must not be counted)", n)
	}
}
