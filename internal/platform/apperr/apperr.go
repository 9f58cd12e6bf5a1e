// Package apperr defines the error taxonomy shared by the auth, policy and audit layers
// and its mapping onto HTTP responses.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Sentinel errors. Stores and services wrap them with fmt.Errorf("...: %w", ErrX).
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("bad request")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Envelope is the JSON body written for every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Status maps err to an HTTP status code. Unknown errors are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. It never includes wrapped detail,
// so a caller cannot tell an unknown token from an expired one.
func Message(err error) string {
	switch Status(err) {
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusBadRequest:
		var br *BadRequestError
		if errors.As(err, &br) && br.Reason != "" {
			return br.Reason
		}
		return "Bad request"
	default:
		return "Internal server error"
	}
}

// BadRequestError carries a client-safe reason for a 400 response.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string { return "bad request: " + e.Reason }

// Unwrap lets errors.Is(err, ErrBadRequest) match.
func (e *BadRequestError) Unwrap() error { return ErrBadRequest }

// BadRequest returns an error that maps to 400 with reason as the message.
func BadRequest(reason string) error {
	return &BadRequestError{Reason: reason}
}

// Write writes the error envelope for err.
func Write(w http.ResponseWriter, err error) {
	WriteJSON(w, Status(err), Envelope{Status: "error", Message: Message(err)})
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
