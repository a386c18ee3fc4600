package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/portfolio/backend/internal/model"
)

// ErrOverLimit is returned when the submission limiter blocks a
// submission.
var ErrOverLimit = errors.New("submission limit exceeded")

// ErrInvalidTransition is returned when a status update would move a
// record backwards.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidationError describes a rejected submission field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionService defines the business logic for contact form
// submissions.
type SubmissionService interface {
	// Submit validates, rate-checks, scores and stores a submission,
	// then dispatches the confirmation and notification emails when
	// the submission is not spam. Returns the stored record.
	// Honeypot hits and too-fast fills are stored flagged as spam and
	// reported as success so automated senders learn nothing.
	Submit(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error)

	// List returns stored submissions according to the given options.
	List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.SubmissionRecord, error)

	// UpdateStatus moves a record through the review lifecycle.
	UpdateStatus(ctx context.Context, id string, status string) error
}
