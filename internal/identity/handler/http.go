package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"loandesk/backend/internal/identity/service"
	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/server/interceptors"
	sessiondomain "loandesk/backend/internal/session/domain"
)

const maxLoginBody = 1 << 16

// Authenticator is the login boundary used by the HTTP handlers.
type Authenticator interface {
	Login(ctx context.Context, nationalID, password, clientIP string) (*service.LoginResult, error)
	Logout(ctx context.Context, id *sessiondomain.Identity) error
}

// AuthHandler serves /api/auth. Login is public; logout and me must be mounted behind Authenticate.
type AuthHandler struct {
	auth Authenticator
	log  *zap.Logger
}

// NewAuthHandler returns a new auth HTTP handler.
func NewAuthHandler(auth Authenticator, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, log: log}
}

type loginRequest struct {
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Status      string    `json:"status"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type meResponse struct {
	Status string   `json:"status"`
	User   identity `json:"user"`
}

type identity struct {
	UserID      int64     `json:"user_id"`
	NationalID  string    `json:"national_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	// An unreadable body is treated as empty fields, which Login rejects as a bad request.
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("login body not decoded", zap.Error(err))
	}

	res, err := h.auth.Login(r.Context(), req.NationalID, req.Password, interceptors.ClientIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apperr.WriteJSON(w, http.StatusUnauthorized, apperr.Envelope{Status: "error", Message: "Invalid credentials"})
			return
		}
		apperr.Write(w, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, loginResponse{
		Status:      "success",
		Role:        res.Role,
		DisplayName: res.DisplayName,
		Token:       res.Token,
		ExpiresAt:   res.ExpiresAt.UTC(),
	})
}

// Logout handles POST /api/auth/logout by revoking the caller's own token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, _ := interceptors.IdentityFrom(r.Context())
	if err := h.auth.Logout(r.Context(), id); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, apperr.Envelope{Status: "success"})
}

// Me handles GET /api/auth/me and returns the session snapshot.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := interceptors.IdentityFrom(r.Context())
	if !ok {
		apperr.Write(w, apperr.ErrUnauthorized)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, meResponse{
		Status: "success",
		User: identity{
			UserID:      id.UserID,
			NationalID:  id.PrincipalID,
			DisplayName: id.DisplayName,
			Role:        id.Role,
			ExpiresAt:   id.ExpiresAt.UTC(),
		},
	})
}

// LoginRateLimit limits login attempts per client IP per minute.
func LoginRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = 10
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			apperr.WriteJSON(w, http.StatusTooManyRequests, apperr.Envelope{Status: "error", Message: "Too many login attempts"})
		}),
	)
}
