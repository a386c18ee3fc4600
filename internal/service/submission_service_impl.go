package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/portfolio/backend/internal/limiter"
	"github.com/portfolio/backend/internal/mailer"
	"github.com/portfolio/backend/internal/metrics"
	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/repository"
	"github.com/portfolio/backend/internal/spam"
)

// Bounds are the submission field length limits, in runes.
type Bounds struct {
	NameMax    int
	EmailMax   int
	SubjectMax int
	MessageMax int
}

// DefaultBounds returns the baseline field limits.
func DefaultBounds() Bounds {
	return Bounds{NameMax: 100, EmailMax: 255, SubjectMax: 200, MessageMax: 2000}
}

// HistoryRecorder is implemented by history stores that need explicit
// writes (the Redis store). The Postgres store counts straight off the
// submissions table, so no recorder is wired for it.
type HistoryRecorder interface {
	Record(ctx context.Context, email, ip string, isSpam bool, at time.Time) error
}

// Config carries the policy knobs the service applies per submission.
type Config struct {
	Bounds  Bounds
	Weights spam.Weights
	Limits  limiter.Config
	// MinFillTime treats forms submitted faster than this after
	// render as automated. Zero disables the check.
	MinFillTime time.Duration
	// MailTimeout bounds the async email dispatch.
	MailTimeout time.Duration
}

// submissionServiceImpl is the production implementation of
// SubmissionService.
type submissionServiceImpl struct {
	repo     repository.SubmissionRepository
	history  limiter.HistoryStore
	recorder HistoryRecorder
	mail     mailer.Sender
	cfg      Config
	now      func() time.Time
}

// NewSubmissionService creates a SubmissionService. recorder may be
// nil when the history store derives counts from the repository.
func NewSubmissionService(
	repo repository.SubmissionRepository,
	history limiter.HistoryStore,
	recorder HistoryRecorder,
	mail mailer.Sender,
	cfg Config,
) SubmissionService {
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = 15 * time.Second
	}
	return &submissionServiceImpl{
		repo:     repo,
		history:  history,
		recorder: recorder,
		mail:     mail,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Submit runs the full pipeline: validate, anti-automation checks,
// limiter, scorer, persist, notify.
func (s *submissionServiceImpl) Submit(ctx context.Context, sub *model.Submission) (*model.SubmissionRecord, error) {
	s.trim(sub)
	if verr := s.validate(sub); verr != nil {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		return nil, verr
	}

	now := s.now().UTC()

	if s.isAutomated(sub, now) {
		return s.storeSilently(ctx, sub, now)
	}

	limit := limiter.Check(ctx, s.history, now, sub.Email, sub.IPAddress, s.cfg.Limits)
	if limit.IsOverLimit {
		if limit.StoreError {
			slog.Warn("limiter history unavailable, applying fail policy",
				"policy", s.cfg.Limits.Policy, "ip", sub.IPAddress)
		}
		metrics.RecordSubmission(metrics.OutcomeRateLimited)
		return nil, ErrOverLimit
	}

	score := spam.Score(spam.Fields{
		Name:    sub.Name,
		Email:   sub.Email,
		Subject: sub.Subject,
		Message: sub.Message,
	}, s.cfg.Weights)
	metrics.ObserveSpamScore(score.Score)

	rec := s.newRecord(sub, score.Score, score.IsSpam)
	if err := s.repo.Save(ctx, rec); err != nil {
		metrics.RecordSubmission(metrics.OutcomeError)
		return nil, fmt.Errorf("save submission: %w", err)
	}
	s.recordHistory(ctx, sub, score.IsSpam, now)

	if score.IsSpam {
		metrics.RecordSubmission(metrics.OutcomeSpam)
		slog.Info("submission flagged as spam", "id", rec.ID, "score", rec.SpamScore)
		return rec, nil
	}

	metrics.RecordSubmission(metrics.OutcomeAccepted)
	s.dispatchEmails(rec)
	return rec, nil
}

// List returns stored submissions per the filter/pagination options.
func (s *submissionServiceImpl) List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.SubmissionRecord, error) {
	return s.repo.List(ctx, opts)
}

// UpdateStatus moves a record through the review lifecycle, rejecting
// backwards transitions.
func (s *submissionServiceImpl) UpdateStatus(ctx context.Context, id string, status string) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !model.ValidStatusTransition(rec.Status, status) {
		return ErrInvalidTransition
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *submissionServiceImpl) trim(sub *model.Submission) {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Subject = strings.TrimSpace(sub.Subject)
	sub.Message = strings.TrimSpace(sub.Message)
	sub.Honeypot = strings.TrimSpace(sub.Honeypot)
}

func (s *submissionServiceImpl) validate(sub *model.Submission) *ValidationError {
	if sub.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if len([]rune(sub.Name)) > s.cfg.Bounds.NameMax {
		return &ValidationError{Field: "name", Reason: "too long"}
	}
	if sub.Email == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	if len(sub.Email) > s.cfg.Bounds.EmailMax {
		return &ValidationError{Field: "email", Reason: "too long"}
	}
	if addr, err := mail.ParseAddress(sub.Email); err != nil || addr.Address != sub.Email {
		return &ValidationError{Field: "email", Reason: "not a valid address"}
	}
	if sub.Subject == "" {
		return &ValidationError{Field: "subject", Reason: "required"}
	}
	if len([]rune(sub.Subject)) > s.cfg.Bounds.SubjectMax {
		return &ValidationError{Field: "subject", Reason: "too long"}
	}
	if sub.Message == "" {
		return &ValidationError{Field: "message", Reason: "required"}
	}
	if len([]rune(sub.Message)) > s.cfg.Bounds.MessageMax {
		return &ValidationError{Field: "message", Reason: "too long"}
	}
	return nil
}

// isAutomated reports whether the submission tripped the honeypot or
// was filled in faster than a human plausibly types.
func (s *submissionServiceImpl) isAutomated(sub *model.Submission, now time.Time) bool {
	if sub.Honeypot != "" {
		return true
	}
	if s.cfg.MinFillTime > 0 && !sub.RenderedAt.IsZero() {
		if fill := now.Sub(sub.RenderedAt.UTC()); fill >= 0 && fill < s.cfg.MinFillTime {
			return true
		}
	}
	return false
}

// storeSilently persists an automated submission flagged as spam at
// the score cap and reports success. No emails go out.
func (s *submissionServiceImpl) storeSilently(ctx context.Context, sub *model.Submission, now time.Time) (*model.SubmissionRecord, error) {
	rec := s.newRecord(sub, s.cfg.Weights.MaxScore, true)
	if err := s.repo.Save(ctx, rec); err != nil {
		metrics.RecordSubmission(metrics.OutcomeError)
		return nil, fmt.Errorf("save submission: %w", err)
	}
	s.recordHistory(ctx, sub, true, now)
	metrics.RecordSubmission(metrics.OutcomeSpam)
	slog.Info("automated submission stored silently", "id", rec.ID, "ip", sub.IPAddress)
	return rec, nil
}

func (s *submissionServiceImpl) newRecord(sub *model.Submission, score int, isSpam bool) *model.SubmissionRecord {
	return &model.SubmissionRecord{
		Name:      sub.Name,
		Email:     sub.Email,
		Subject:   sub.Subject,
		Message:   sub.Message,
		IPAddress: sub.IPAddress,
		UserAgent: sub.UserAgent,
		SpamScore: score,
		IsSpam:    isSpam,
		Status:    model.StatusPending,
	}
}

// recordHistory feeds the counter-based history store when one is
// wired. Failures are logged and do not fail the submission.
func (s *submissionServiceImpl) recordHistory(ctx context.Context, sub *model.Submission, isSpam bool, at time.Time) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, sub.Email, sub.IPAddress, isSpam, at); err != nil {
		slog.Warn("failed to record submission history", "error", err)
	}
}

// dispatchEmails sends both emails in the background. The request does
// not wait on SMTP, and delivery failures are logged only.
func (s *submissionServiceImpl) dispatchEmails(rec *model.SubmissionRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MailTimeout)
		defer cancel()
		if err := s.mail.SendConfirmation(ctx, rec); err != nil {
			slog.Error("failed to send confirmation email", "id", rec.ID, "error", err)
		}
		if err := s.mail.SendAdminNotification(ctx, rec); err != nil {
			slog.Error("failed to send admin notification", "id", rec.ID, "error", err)
		}
	}()
}
