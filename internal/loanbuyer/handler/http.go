// Package handler serves the loan buyer routes. Ownership checks run in middleware before these
// handlers, so the handlers only see requests already allowed for the record.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loandesk/backend/internal/loanbuyer/domain"
	"loandesk/backend/internal/loanbuyer/repository"
	"loandesk/backend/internal/ownership"
	"loandesk/backend/internal/platform/apperr"
	"loandesk/backend/internal/server/interceptors"
)

// IDParam is the chi URL parameter carrying the record id.
const IDParam = "buyerID"

const maxBody = 1 << 20

// Roles whose new records are assigned to themselves when no broker is given.
var selfAssignRoles = map[string]bool{"broker": true, "employee": true}

type Handler struct {
	repo      repository.Repository
	adminRole string
	log       *zap.Logger
}

// NewHandler returns a loan buyer handler. adminRole sees every record in List.
func NewHandler(repo repository.Repository, adminRole string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{repo: repo, adminRole: adminRole, log: log}
}

// Routes mounts the handlers. guard wraps the per-record routes with the ownership check and
// audit runs after it, so a request the guard rejects is never recorded.
func (h *Handler) Routes(r chi.Router, guard, audit func(http.Handler) http.Handler) {
	r.With(audit).Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{"+IDParam+"}", func(r chi.Router) {
		r.Use(guard)
		r.Use(audit)
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
	})
}

type buyerRequest struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	NationalID       *string `json:"national_id"`
	Phone            *string `json:"phone"`
	ProcessingStatus *string `json:"processing_status"`
	Notes            *string `json:"notes"`
	LoanID           *int64  `json:"loan_id"`
	Broker           *string `json:"broker"`
}

// BuyerItem is the JSON form of a loan buyer.
type BuyerItem struct {
	ID               int64     `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	NationalID       string    `json:"national_id"`
	Phone            string    `json:"phone"`
	ProcessingStatus string    `json:"processing_status"`
	Notes            string    `json:"notes,omitempty"`
	LoanID           *int64    `json:"loan_id"`
	Broker           string    `json:"broker,omitempty"`
	CreatedByName    string    `json:"created_by_name,omitempty"`
	CreatedByNID     string    `json:"created_by_nid,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type itemResponse struct {
	Status string    `json:"status"`
	Item   BuyerItem `json:"item"`
}

type listResponse struct {
	Status string      `json:"status"`
	Items  []BuyerItem `json:"items"`
}

// Create handles POST /api/loan-buyers. The caller is recorded as creator.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := interceptors.IdentityFrom(r.Context())
	if !ok {
		apperr.Write(w, apperr.ErrUnauthorized)
		return
	}
	var req buyerRequest
	if err := decode(w, r, &req); err != nil {
		apperr.Write(w, err)
		return
	}
	b := &domain.LoanBuyer{
		FirstName:        deref(req.FirstName),
		LastName:         deref(req.LastName),
		NationalID:       deref(req.NationalID),
		Phone:            deref(req.Phone),
		ProcessingStatus: deref(req.ProcessingStatus),
		Notes:            deref(req.Notes),
		LoanID:           req.LoanID,
		Broker:           deref(req.Broker),
		CreatedByName:    id.DisplayName,
		CreatedByNID:     id.PrincipalID,
	}
	if b.Broker == "" && selfAssignRoles[id.Role] {
		b.Broker = id.PrincipalID
	}
	if err := b.Normalize(); err != nil {
		apperr.Write(w, err)
		return
	}
	if err := h.repo.Create(r.Context(), b); err != nil {
		h.fail(w, "create loan buyer", err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, itemResponse{Status: "success", Item: toItem(b)})
}

// List handles GET /api/loan-buyers. The admin sees every record, others only their own.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := interceptors.IdentityFrom(r.Context())
	if !ok {
		apperr.Write(w, apperr.ErrUnauthorized)
		return
	}
	owner := id.PrincipalID
	if id.Role == h.adminRole {
		owner = ""
	} else if owner == "" {
		apperr.WriteJSON(w, http.StatusOK, listResponse{Status: "success", Items: []BuyerItem{}})
		return
	}
	buyers, err := h.repo.List(r.Context(), owner)
	if err != nil {
		h.fail(w, "list loan buyers", err)
		return
	}
	items := make([]BuyerItem, 0, len(buyers))
	for _, b := range buyers {
		items = append(items, toItem(b))
	}
	apperr.WriteJSON(w, http.StatusOK, listResponse{Status: "success", Items: items})
}

// Get handles GET /api/loan-buyers/{buyerID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := ownership.ParseID(chi.URLParam(r, IDParam))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	b, err := h.repo.GetByID(r.Context(), n)
	if err != nil {
		h.fail(w, "get loan buyer", err)
		return
	}
	if b == nil {
		apperr.Write(w, apperr.ErrNotFound)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, itemResponse{Status: "success", Item: toItem(b)})
}

// Update handles PATCH /api/loan-buyers/{buyerID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	n, err := ownership.ParseID(chi.URLParam(r, IDParam))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req buyerRequest
	if err := decode(w, r, &req); err != nil {
		apperr.Write(w, err)
		return
	}
	if req.NationalID != nil {
		apperr.Write(w, apperr.BadRequest("national_id cannot be changed"))
		return
	}
	b, err := h.repo.Update(r.Context(), n, domain.Patch{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		ProcessingStatus: req.ProcessingStatus,
		Notes:            req.Notes,
		LoanID:           req.LoanID,
		Broker:           req.Broker,
	})
	if err != nil {
		h.fail(w, "update loan buyer", err)
		return
	}
	if b == nil {
		apperr.Write(w, apperr.ErrNotFound)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, itemResponse{Status: "success", Item: toItem(b)})
}

// Delete handles DELETE /api/loan-buyers/{buyerID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	n, err := ownership.ParseID(chi.URLParam(r, IDParam))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	deleted, err := h.repo.Delete(r.Context(), n)
	if err != nil {
		h.fail(w, "delete loan buyer", err)
		return
	}
	if !deleted {
		apperr.Write(w, apperr.ErrNotFound)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, apperr.Envelope{Status: "success"})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	apperr.Write(w, fmt.Errorf("%s: %w: %v", op, apperr.ErrStorageUnavailable, err))
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		return apperr.BadRequest("Invalid JSON body")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toItem(b *domain.LoanBuyer) BuyerItem {
	return BuyerItem{
		ID:               b.ID,
		FirstName:        b.FirstName,
		LastName:         b.LastName,
		NationalID:       b.NationalID,
		Phone:            b.Phone,
		ProcessingStatus: b.ProcessingStatus,
		Notes:            b.Notes,
		LoanID:           b.LoanID,
		Broker:           b.Broker,
		CreatedByName:    b.CreatedByName,
		CreatedByNID:     b.CreatedByNID,
		CreatedAt:        b.CreatedAt.UTC(),
		UpdatedAt:        b.UpdatedAt.UTC(),
	}
}
