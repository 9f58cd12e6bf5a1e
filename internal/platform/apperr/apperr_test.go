package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatus(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"wrapped forbidden", fmt.Errorf("rbac: %w", ErrForbidden), http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"bad request reason", BadRequest("Invalid resource ID"), http.StatusBadRequest},
		{"storage", fmt.Errorf("session: %w", ErrStorageUnavailable), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Status(tc.err); got != tc.want {
				t.Errorf("Status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMessage_HidesDetail(t *testing.T) {
	err := fmt.Errorf("token abc expired at 10:00: %w", ErrUnauthorized)
	if got := Message(err); got != "Unauthorized" {
		t.Errorf("Message = %q, want %q", got, "Unauthorized")
	}
	if got := Message(BadRequest("Invalid date format")); got != "Invalid date format" {
		t.Errorf("Message = %q, want %q", got, "Invalid date format")
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, ErrForbidden)

	if rec.Code != http.StatusForbidden {
		t.Errorf("code = %d, want %d", rec.Code, http.StatusForbidden)
	}
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != "error" || env.Message != "Forbidden" {
		t.Errorf("envelope = %+v, want status=error message=Forbidden", env)
	}
}
