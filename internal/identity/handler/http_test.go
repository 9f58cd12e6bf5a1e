package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loandesk/backend/internal/identity/service"
	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/server/interceptors"
	sessiondomain "loandesk/backend/internal/session/domain"
)

type mockAuth struct {
	loginErr  error
	logoutErr error
	gotNID    string
	gotPass   string
	loggedOut *sessiondomain.Identity
}

func (m *mockAuth) Login(ctx context.Context, nationalID, password, clientIP string) (*service.LoginResult, error) {
	m.gotNID, m.gotPass = nationalID, password
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &service.LoginResult{Token: "tok", Role: "broker", DisplayName: "Dana", ExpiresAt: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)}, nil
}

func (m *mockAuth) Logout(ctx context.Context, id *sessiondomain.Identity) error {
	m.loggedOut = id
	return m.logoutErr
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestLogin_Success(t *testing.T) {
	auth := &mockAuth{}
	h := NewAuthHandler(auth, nil)
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"national_id":"0011223344","password":"pw"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "success" || body["token"] != "tok" || body["role"] != "broker" || body["display_name"] != "Dana" {
		t.Errorf("body = %v", body)
	}
	if auth.gotNID != "0011223344" || auth.gotPass != "pw" {
		t.Errorf("forwarded credentials = %q/%q", auth.gotNID, auth.gotPass)
	}
}

func TestLogin_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		body    string
		code    int
		message string
	}{
		{"invalid credentials", service.ErrInvalidCredentials, `{"national_id":"1","password":"x"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"missing fields", apperr.BadRequest("national_id and password are required"), `not json`, http.StatusBadRequest, "national_id and password are required"},
		{"storage", apperr.ErrStorageUnavailable, `{}`, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuth{loginErr: tc.err}, nil)
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.body)))
			if rec.Code != tc.code {
				t.Errorf("status = %d, want %d", rec.Code, tc.code)
			}
			body := decode(t, rec)
			if body["status"] != "error" || body["message"] != tc.message {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestLogout_UsesCallerIdentity(t *testing.T) {
	auth := &mockAuth{}
	h := NewAuthHandler(auth, nil)
	id := &sessiondomain.Identity{UserID: 4, Token: "mine"}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(interceptors.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if auth.loggedOut != id {
		t.Error("Logout should revoke the caller's identity")
	}
}

func TestMe(t *testing.T) {
	h := NewAuthHandler(&mockAuth{}, nil)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without identity: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(interceptors.WithIdentity(req.Context(), &sessiondomain.Identity{UserID: 4, PrincipalID: "0011223344", Role: "admin"}))
	rec = httptest.NewRecorder()
	h.Me(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	user, _ := decode(t, rec)["user"].(map[string]any)
	if user["national_id"] != "0011223344" || user["role"] != "admin" {
		t.Errorf("user = %v", user)
	}
}

func TestLoginRateLimit(t *testing.T) {
	h := LoginRateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third attempt status = %d, want 429", last)
	}
}
