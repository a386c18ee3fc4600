package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/repository"
	"github.com/portfolio/backend/internal/service"
)

// SubmissionHandler handles the public contact endpoint and the admin
// review endpoints.
type SubmissionHandler struct {
	svc service.SubmissionService
	// trustedProxyCount selects the X-Forwarded-For entry to trust
	// for the source IP.
	trustedProxyCount int
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(svc service.SubmissionService, trustedProxyCount int) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, trustedProxyCount: trustedProxyCount}
}

// submitRequest is the expected JSON body for POST /api/contact.
// website is the honeypot field; rendered_at is the optional client
// timestamp for the fill-time check.
type submitRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	Website    string `json:"website"`
	RenderedAt string `json:"rendered_at"`
}

type submitResponse struct {
	OK string `json:"ok"`
	ID string `json:"id,omitempty"`
}

// Submit handles POST /api/contact.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	sub := &model.Submission{
		Name:      req.Name,
		Email:     req.Email,
		Subject:   req.Subject,
		Message:   req.Message,
		Honeypot:  req.Website,
		IPAddress: clientIP(r, h.trustedProxyCount),
		UserAgent: r.UserAgent(),
	}
	// A malformed client timestamp is ignored, not rejected.
	if req.RenderedAt != "" {
		if t, err := time.Parse(time.RFC3339, req.RenderedAt); err == nil {
			sub.RenderedAt = t
		}
	}

	rec, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "validation_failed",
				"field": verr.Field,
			})
		case errors.Is(err, service.ErrOverLimit):
			writeError(w, http.StatusTooManyRequests, "too_many_submissions")
		default:
			writeError(w, http.StatusInternalServerError, "submit_failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{OK: "true", ID: rec.ID})
}

// adminListResponse is the JSON response for GET /api/admin/submissions.
type adminListResponse struct {
	Submissions []*model.SubmissionRecord `json:"submissions"`
}

// AdminList handles GET /api/admin/submissions.
// Supports query params: status, include_spam, limit, offset.
func (h *SubmissionHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	opts := model.SubmissionListOptions{
		Status:      r.URL.Query().Get("status"),
		IncludeSpam: r.URL.Query().Get("include_spam") == "true",
		Limit:       20,
		Offset:      0,
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	records, err := h.svc.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}

	// Return [] not null for empty lists
	if records == nil {
		records = []*model.SubmissionRecord{}
	}

	writeJSON(w, http.StatusOK, adminListResponse{Submissions: records})
}

// statusRequest is the expected body for the status PATCH.
type statusRequest struct {
	Status string `json:"status"`
}

// AdminUpdateStatus handles PATCH /api/admin/submissions/{id}/status.
func (h *SubmissionHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id_required")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	switch req.Status {
	case model.StatusReviewed, model.StatusReplied, model.StatusArchived:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_transition")
		default:
			writeError(w, http.StatusInternalServerError, "update_failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}
