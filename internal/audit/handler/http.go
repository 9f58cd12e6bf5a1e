package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"loandesk/backend/internal/audit/domain"
	auditrepo "loandesk/backend/internal/audit/repository"
	"loandesk/backend/internal/platform/apperr"
)

const (
	// DefaultListLimit is used when the request carries no valid limit.
	DefaultListLimit = 1000
	// MaxListLimit caps a single page of activity entries.
	MaxListLimit = 5000

	dateLayout = "2006-01-02"
)

// Handler serves activity log review. Routes are mounted behind RequireAdmin.
type Handler struct {
	repo auditrepo.Repository
	log  *zap.Logger
}

// NewHandler returns an activity handler reading from repo.
func NewHandler(repo auditrepo.Repository, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{repo: repo, log: log}
}

// ActivityItem is one entry in the list response.
type ActivityItem struct {
	ID        int64   `json:"id"`
	CreatedAt string  `json:"created_at"`
	UserID    *int64  `json:"user_id"`
	UserName  *string `json:"user_name"`
	Action    string  `json:"action"`
	Details   *string `json:"details"`
	Status    string  `json:"status"`
}

type listResponse struct {
	Status string         `json:"status"`
	Items  []ActivityItem `json:"items"`
}

// List handles GET /api/activity?user_id=&date_from=YYYY-MM-DD&date_to=YYYY-MM-DD&limit=.
// date_to is inclusive of the whole day.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	entries, err := h.repo.List(r.Context(), f)
	if err != nil {
		h.log.Error("list activity failed", zap.Error(err))
		apperr.Write(w, apperr.ErrStorageUnavailable)
		return
	}
	items := make([]ActivityItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, toItem(e))
	}
	apperr.WriteJSON(w, http.StatusOK, listResponse{Status: "success", Items: items})
}

// ParseFilter reads the list query parameters. Malformed dates or user ids are a bad request.
func ParseFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	f := domain.ListFilter{Limit: DefaultListLimit}

	if raw := strings.TrimSpace(q.Get("user_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, apperr.BadRequest("Invalid user_id")
		}
		f.UserID = &id
	}
	if raw := strings.TrimSpace(q.Get("date_from")); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return f, apperr.BadRequest("Invalid date format")
		}
		f.From = d
	}
	if raw := strings.TrimSpace(q.Get("date_to")); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return f, apperr.BadRequest("Invalid date format")
		}
		f.To = d.AddDate(0, 0, 1)
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Limit = min(n, MaxListLimit)
		}
	}
	return f, nil
}

func toItem(e *domain.ActivityLog) ActivityItem {
	item := ActivityItem{
		ID:        e.ID,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		UserID:    e.UserID,
		Action:    e.Action,
		Status:    string(e.Status),
	}
	if e.UserName != "" {
		item.UserName = &e.UserName
	}
	if e.Details != "" {
		item.Details = &e.Details
	}
	return item
}
