package handler

import (
	"net/http"

	"go.uber.org/zap"

	"loandesk/backend/internal/platform/apperr"
)

// HTTPHandler serves /healthz and /readyz.
type HTTPHandler struct {
	checker *Checker
	log     *zap.Logger
}

// NewHTTPHandler returns the HTTP health endpoints backed by checker.
func NewHTTPHandler(checker *Checker, log *zap.Logger) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{checker: checker, log: log}
}

// Live always reports ok while the process serves requests.
func (h *HTTPHandler) Live(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, apperr.Envelope{Status: "ok"})
}

// Ready reports 503 when a dependency check fails.
func (h *HTTPHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.Ready(r.Context()); err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		apperr.WriteJSON(w, http.StatusServiceUnavailable, apperr.Envelope{Status: "unavailable"})
		return
	}
	apperr.WriteJSON(w, http.StatusOK, apperr.Envelope{Status: "ok"})
}
