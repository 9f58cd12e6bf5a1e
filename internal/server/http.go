package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	audithandler "loandesk/backend/internal/audit/handler"
	auditrepo "loandesk/backend/internal/audit/repository"
	healthhandler "loandesk/backend/internal/health/handler"
	identityhandler "loandesk/backend/internal/identity/handler"
	loanbuyerhandler "loandesk/backend/internal/loanbuyer/handler"
	loanbuyerrepo "loandesk/backend/internal/loanbuyer/repository"
	"loandesk/backend/internal/observability/metrics"
	"loandesk/backend/internal/ownership"
	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/platform/rbac"
	"loandesk/backend/internal/server/interceptors"
)

const requestTimeout = 30 * time.Second

// HTTPDeps holds the dependencies of the REST API. Metrics and Health may be nil.
type HTTPDeps struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics

	// Tokens validates the session header. TokenHeader defaults to X-Auth-Token.
	Tokens      interceptors.TokenValidator
	TokenHeader string

	Auth           identityhandler.Authenticator
	LoginRateLimit int

	Policy *rbac.Policy

	// Audit records mutating requests; AuditPreviewLimit caps the stored body preview.
	Audit             interceptors.ActivityRecorder
	AuditPreviewLimit int
	ActivityRepo      auditrepo.Repository

	LoanBuyers loanbuyerrepo.Repository

	Health      *healthhandler.Checker
	CORSOrigins []string
}

// NewRouter builds the chi router. Protected routes run Authenticate, then Audit, then the
// authorization policy, then the handler.
func NewRouter(d HTTPDeps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	header := d.TokenHeader
	if header == "" {
		header = interceptors.DefaultTokenHeader
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(interceptors.RequestTelemetry(log, d.Metrics, map[string]bool{"/healthz": true, "/readyz": true, "/metrics": true}))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", header, "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.Write(w, apperr.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteJSON(w, http.StatusMethodNotAllowed, apperr.Envelope{Status: "error", Message: "Method not allowed"})
	})

	health := healthhandler.NewHTTPHandler(healthChecker(d.Health), log)
	r.Get("/healthz", health.Live)
	r.Get("/readyz", health.Ready)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	authenticate := interceptors.Authenticate(d.Tokens, header, log)
	auditMW := interceptors.Audit(d.Audit, d.AuditPreviewLimit)

	r.Route("/api", func(r chi.Router) {
		// Login and logout write their own activity entries.
		auth := identityhandler.NewAuthHandler(d.Auth, log)
		r.Route("/auth", func(r chi.Router) {
			r.With(identityhandler.LoginRateLimit(d.LoginRateLimit)).Post("/login", auth.Login)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/logout", auth.Logout)
				r.Get("/me", auth.Me)
			})
		})

		r.Route("/activity", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(d.Policy.RequireAdmin())
			r.Get("/", audithandler.NewHandler(d.ActivityRepo, log).List)
		})

		r.Route("/loan-buyers", func(r chi.Router) {
			r.Use(authenticate)
			h := loanbuyerhandler.NewHandler(d.LoanBuyers, d.Policy.AdminRole(), log)
			h.Routes(r, d.Policy.RequireAdminOrOwner(ownership.KindLoanBuyer, loanbuyerhandler.IDParam), auditMW)
		})
	})
	return r
}

func healthChecker(c *healthhandler.Checker) *healthhandler.Checker {
	if c == nil {
		return healthhandler.NewChecker(nil, nil)
	}
	return c
}
