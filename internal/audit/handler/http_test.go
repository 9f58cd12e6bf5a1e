package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loandesk/backend/internal/audit/domain"
)

type mockRepo struct {
	entries []*domain.ActivityLog
	listErr error
	got     domain.ListFilter
}

func (m *mockRepo) Create(ctx context.Context, a *domain.ActivityLog) error { return nil }

func (m *mockRepo) List(ctx context.Context, f domain.ListFilter) ([]*domain.ActivityLog, error) {
	m.got = f
	return m.entries, m.listErr
}

func (m *mockRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestParseFilter(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/activity?user_id=4&date_from=2024-01-02&date_to=2024-01-05&limit=20", nil)
	f, err := ParseFilter(r)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if f.UserID == nil || *f.UserID != 4 {
		t.Errorf("UserID = %v, want 4", f.UserID)
	}
	if want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC); !f.From.Equal(want) {
		t.Errorf("From = %v, want %v", f.From, want)
	}
	if want := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC); !f.To.Equal(want) {
		t.Errorf("To = %v, want %v (exclusive end of date_to)", f.To, want)
	}
	if f.Limit != 20 {
		t.Errorf("Limit = %d, want 20", f.Limit)
	}
}

func TestParseFilter_Defaults(t *testing.T) {
	testCases := []struct {
		query string
		want  int
	}{
		{"", DefaultListLimit},
		{"limit=abc", DefaultListLimit},
		{"limit=-3", DefaultListLimit},
		{"limit=999999", MaxListLimit},
	}
	for _, tc := range testCases {
		r := httptest.NewRequest(http.MethodGet, "/api/activity?"+tc.query, nil)
		f, err := ParseFilter(r)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", tc.query, err)
		}
		if f.Limit != tc.want {
			t.Errorf("ParseFilter(%q).Limit = %d, want %d", tc.query, f.Limit, tc.want)
		}
	}
}

func TestList_InvalidInputIsBadRequest(t *testing.T) {
	h := NewHandler(&mockRepo{}, nil)
	for _, q := range []string{"date_from=01/02/2024", "date_to=2024-13-01", "user_id=abc"} {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/activity?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestList_Success(t *testing.T) {
	uid := int64(2)
	repo := &mockRepo{entries: []*domain.ActivityLog{
		{ID: 9, UserID: &uid, UserName: "Dana", Action: "POST /api/loan-buyers", Details: "{}", Status: domain.StatusSuccess,
			CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: 8, Action: "login", Status: domain.StatusFailure, CreatedAt: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)},
	}}
	h := NewHandler(repo, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/activity", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string         `json:"status"`
		Items  []ActivityItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" || len(body.Items) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if body.Items[0].CreatedAt != "2024-01-02T03:04:05Z" || *body.Items[0].UserName != "Dana" {
		t.Errorf("first item = %+v", body.Items[0])
	}
	if body.Items[1].UserID != nil || body.Items[1].UserName != nil {
		t.Errorf("anonymous item should have null user fields, got %+v", body.Items[1])
	}
	if repo.got.Limit != DefaultListLimit {
		t.Errorf("repo limit = %d, want %d", repo.got.Limit, DefaultListLimit)
	}
}

func TestList_StorageError(t *testing.T) {
	h := NewHandler(&mockRepo{listErr: errors.New("boom")}, nil)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/activity", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
