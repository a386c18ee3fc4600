package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portfolio/backend/internal/model"
)

// SubmissionRepository defines the persistence interface for contact
// submissions. It is defined here (in repository) to avoid an import
// cycle with service.
type SubmissionRepository interface {
	Save(ctx context.Context, rec *model.SubmissionRecord) error
	List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.SubmissionRecord, error)
	Get(ctx context.Context, id string) (*model.SubmissionRecord, error)
	UpdateStatus(ctx context.Context, id string, status string) error
}

// PgSubmissionRepository is the PostgreSQL implementation of
// SubmissionRepository. It also serves limiter.HistoryStore: the
// windowed counts are read straight from the submissions table.
type PgSubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubmissionRepository creates a PgSubmissionRepository backed by
// the given pool.
func NewPgSubmissionRepository(pool *pgxpool.Pool) *PgSubmissionRepository {
	return &PgSubmissionRepository{pool: pool}
}

// Ensure PgSubmissionRepository implements SubmissionRepository at compile time.
var _ SubmissionRepository = (*PgSubmissionRepository)(nil)

// Save inserts a new contact_submissions row and populates rec.ID and
// timestamps from the database RETURNING clause.
func (r *PgSubmissionRepository) Save(ctx context.Context, rec *model.SubmissionRecord) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO contact_submissions
		   (name, email, subject, message, ip_address, user_agent, spam_score, is_spam, status)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		rec.Name, rec.Email, rec.Subject, rec.Message,
		rec.IPAddress, rec.UserAgent, rec.SpamScore, rec.IsSpam, rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// List returns submissions filtered by status and paginated by
// limit/offset, newest first. Status "" or "all" returns all records;
// spam-flagged records are excluded unless opts.IncludeSpam is set.
func (r *PgSubmissionRepository) List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.SubmissionRecord, error) {
	var conditions []string
	var args []any

	status := strings.TrimSpace(opts.Status)
	if status != "" && status != "all" {
		args = append(args, status)
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}
	if !opts.IncludeSpam {
		conditions = append(conditions, "is_spam = false")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, opts.Limit, opts.Offset)
	limitArg := strconv.Itoa(len(args) - 1)
	offsetArg := strconv.Itoa(len(args))

	query := `SELECT id, name, email, subject, message,
	                 COALESCE(ip_address, ''), COALESCE(user_agent, ''),
	                 spam_score, is_spam, status, created_at, updated_at
	          FROM contact_submissions ` + where +
		` ORDER BY created_at DESC
		  LIMIT $` + limitArg + ` OFFSET $` + offsetArg

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.SubmissionRecord
	for rows.Next() {
		var rec model.SubmissionRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Subject, &rec.Message,
			&rec.IPAddress, &rec.UserAgent, &rec.SpamScore, &rec.IsSpam,
			&rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Get returns one submission by id, or ErrNotFound.
func (r *PgSubmissionRepository) Get(ctx context.Context, id string) (*model.SubmissionRecord, error) {
	var rec model.SubmissionRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, subject, message,
		        COALESCE(ip_address, ''), COALESCE(user_agent, ''),
		        spam_score, is_spam, status, created_at, updated_at
		 FROM contact_submissions WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Subject, &rec.Message,
		&rec.IPAddress, &rec.UserAgent, &rec.SpamScore, &rec.IsSpam,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateStatus changes the status of a submission.
func (r *PgSubmissionRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contact_submissions SET status = $1, updated_at = now() WHERE id = $2`,
		status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecentByEmail counts non-spam submissions from the email since
// the given time. Part of limiter.HistoryStore.
func (r *PgSubmissionRepository) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contact_submissions
		 WHERE email = $1 AND is_spam = false AND created_at >= $2`,
		email, since).Scan(&n)
	return n, err
}

// CountRecentByIP counts non-spam submissions from the IP since the
// given time. Part of limiter.HistoryStore.
func (r *PgSubmissionRepository) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contact_submissions
		 WHERE ip_address = $1 AND is_spam = false AND created_at >= $2`,
		ip, since).Scan(&n)
	return n, err
}

// CountRecentSpam counts spam-flagged submissions from either identity
// since the given time. Part of limiter.HistoryStore.
func (r *PgSubmissionRepository) CountRecentSpam(ctx context.Context, email, ip string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contact_submissions
		 WHERE (email = $1 OR ip_address = $2) AND is_spam = true AND created_at >= $3`,
		email, ip, since).Scan(&n)
	return n, err
}
