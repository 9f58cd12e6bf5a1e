package audit

import (
	"net/http"
	"unicode/utf8"

	"loandesk/backend/internal/audit/domain"
)

// Explicit event actions recorded by the login boundary.
const (
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// IsMutating reports whether requests with method change state and are therefore audited.
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// RequestAction returns the action recorded for a request: "METHOD path", capped to the column width.
func RequestAction(method, path string) string {
	return Truncate(method+" "+path, domain.MaxActionLen)
}

// Truncate returns at most n characters of s without splitting a multi-byte character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
