package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/repository"
	"github.com/portfolio/backend/internal/service"
)

// ---------------------------------------------------------------------------
// Mock SubmissionService
// ---------------------------------------------------------------------------

type mockSubmissionService struct {
	submitFunc func(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error)
	listFunc   func(ctx context.Context, opts model.SubmissionListOptions) ([]*model.SubmissionRecord, error)
	updateFunc func(ctx context.Context, id, status string) error
}

func (m *mockSubmissionService) Submit(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, sub)
	}
	return &model.SubmissionRecord{ID: "sub-1"}, nil
}

func (m *mockSubmissionService) List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.SubmissionRecord, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, opts)
	}
	return nil, nil
}

func (m *mockSubmissionService) UpdateStatus(ctx context.Context, id, status string) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, status)
	}
	return nil
}

// ---------------------------------------------------------------------------
// POST /api/contact
// ---------------------------------------------------------------------------

func TestSubmit_Success(t *testing.T) {
	var captured *model.Submission
	mock := &mockSubmissionService{
		submitFunc: func(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error) {
			captured = sub
			return &model.SubmissionRecord{ID: "sub-42"}, nil
		},
	}
	h := NewSubmissionHandler(mock, 1)

	body := `{"name":"Alice","email":"alice@example.com","subject":"Hello","message":"A question about your portfolio."}`
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "192.0.2.7:1234"
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body: %s", rec.Code, rec.Body.String())
	}
	if captured == nil {
		t.Fatal("expected Submit to be called")
	}
	if captured.Email != "alice@example.com" {
		t.Errorf("email=%q", captured.Email)
	}
	if captured.IPAddress != "192.0.2.7" {
		t.Errorf("expected IP from RemoteAddr, got %q", captured.IPAddress)
	}
	if captured.UserAgent != "test-agent" {
		t.Errorf("user agent=%q", captured.UserAgent)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["id"] != "sub-42" {
		t.Errorf("response id=%q", resp["id"])
	}
}

func TestSubmit_HoneypotFieldForwarded(t *testing.T) {
	var captured *model.Submission
	mock := &mockSubmissionService{
		submitFunc: func(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error) {
			captured = sub
			return &model.SubmissionRecord{ID: "sub-1"}, nil
		},
	}
	h := NewSubmissionHandler(mock, 1)

	body := `{"name":"Bot","email":"bot@example.com","subject":"s","message":"m","website":"http://bot.example"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if captured.Honeypot != "http://bot.example" {
		t.Errorf("honeypot=%q", captured.Honeypot)
	}
	// Bots must see the same success shape as humans.
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestSubmit_InvalidJSON(t *testing.T) {
	h := NewSubmissionHandler(&mockSubmissionService{}, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSubmit_ValidationError(t *testing.T) {
	mock := &mockSubmissionService{
		submitFunc: func(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error) {
			return nil, &service.ValidationError{Field: "email", Reason: "not a valid address"}
		},
	}
	h := NewSubmissionHandler(mock, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"email":"nope"}`))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["field"] != "email" {
		t.Errorf("expected field=email in response, got %q", resp["field"])
	}
}

func TestSubmit_OverLimit(t *testing.T) {
	mock := &mockSubmissionService{
		submitFunc: func(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error) {
			return nil, service.ErrOverLimit
		},
	}
	h := NewSubmissionHandler(mock, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"email":"a@b.com"}`))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestSubmit_XForwardedFor(t *testing.T) {
	var captured *model.Submission
	mock := &mockSubmissionService{
		submitFunc: func(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error) {
			captured = sub
			return &model.SubmissionRecord{}, nil
		},
	}
	h := NewSubmissionHandler(mock, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"email":"a@b.com"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	// One trusted proxy: the entry it appended is the second one.
	if captured.IPAddress != "10.0.0.1" {
		t.Errorf("expected rightmost trusted XFF entry, got %q", captured.IPAddress)
	}
}

// ---------------------------------------------------------------------------
// GET /api/admin/submissions
// ---------------------------------------------------------------------------

func TestAdminList_PassesOptions(t *testing.T) {
	var gotOpts model.SubmissionListOptions
	mock := &mockSubmissionService{
		listFunc: func(ctx context.Context, opts model.SubmissionListOptions) ([]*model.SubmissionRecord, error) {
			gotOpts = opts
			return []*model.SubmissionRecord{{ID: "sub-1"}}, nil
		},
	}
	h := NewSubmissionHandler(mock, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/submissions?status=pending&include_spam=true&limit=50&offset=10", nil)
	rec := httptest.NewRecorder()
	h.AdminList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotOpts.Status != "pending" || !gotOpts.IncludeSpam || gotOpts.Limit != 50 || gotOpts.Offset != 10 {
		t.Errorf("options not forwarded: %+v", gotOpts)
	}
}

func TestAdminList_EmptyIsArrayNotNull(t *testing.T) {
	h := NewSubmissionHandler(&mockSubmissionService{}, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil)
	rec := httptest.NewRecorder()
	h.AdminList(rec, req)

	if !strings.Contains(rec.Body.String(), `"submissions":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// PATCH /api/admin/submissions/{id}/status
// ---------------------------------------------------------------------------

func patchStatus(t *testing.T, h *SubmissionHandler, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/admin/submissions/{id}/status", h.AdminUpdateStatus)
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/submissions/"+id+"/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminUpdateStatus_Success(t *testing.T) {
	var gotID, gotStatus string
	mock := &mockSubmissionService{
		updateFunc: func(ctx context.Context, id, status string) error {
			gotID, gotStatus = id, status
			return nil
		},
	}
	h := NewSubmissionHandler(mock, 1)

	rec := patchStatus(t, h, "sub-9", `{"status":"reviewed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "sub-9" || gotStatus != model.StatusReviewed {
		t.Errorf("got %q/%q", gotID, gotStatus)
	}
}

func TestAdminUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	h := NewSubmissionHandler(&mockSubmissionService{}, 1)
	rec := patchStatus(t, h, "sub-9", `{"status":"deleted"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAdminUpdateStatus_NotFound(t *testing.T) {
	mock := &mockSubmissionService{
		updateFunc: func(ctx context.Context, id, status string) error {
			return repository.ErrNotFound
		},
	}
	h := NewSubmissionHandler(mock, 1)
	rec := patchStatus(t, h, "missing", `{"status":"reviewed"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAdminUpdateStatus_InvalidTransition(t *testing.T) {
	mock := &mockSubmissionService{
		updateFunc: func(ctx context.Context, id, status string) error {
			return service.ErrInvalidTransition
		},
	}
	h := NewSubmissionHandler(mock, 1)
	rec := patchStatus(t, h, "sub-9", `{"status":"reviewed"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}
