package model

import "time"

// Submission carries the fields of a contact form post before it is
// scored and persisted. Honeypot and RenderedAt come from hidden form
// fields; IPAddress and UserAgent are filled in by the HTTP layer.
type Submission struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Honeypot string `json:"website,omitempty"`
	// RenderedAt is the client-reported time the form was rendered,
	// used for the minimum-fill-time check. Zero when absent.
	RenderedAt time.Time `json:"rendered_at,omitempty"`
	IPAddress  string    `json:"-"`
	UserAgent  string    `json:"-"`
}

// Submission record statuses.
const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusReplied  = "replied"
	StatusArchived = "archived"
)

// ValidStatusTransition reports whether a record may move from one
// status to another. Records only move forward (pending, reviewed,
// replied, archived), with archived reachable from any earlier status.
func ValidStatusTransition(from, to string) bool {
	order := map[string]int{
		StatusPending:  0,
		StatusReviewed: 1,
		StatusReplied:  2,
		StatusArchived: 3,
	}
	f, okF := order[from]
	t, okT := order[to]
	return okF && okT && t > f
}

// SubmissionRecord is a persisted contact submission. Immutable after
// insert except for Status and UpdatedAt.
type SubmissionRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	SpamScore int       `json:"spam_score"`
	IsSpam    bool      `json:"is_spam"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmissionListOptions carries filter and pagination parameters for
// listing submissions.
type SubmissionListOptions struct {
	// Status filters by record status: "", "all", or one of the
	// status constants. Empty string and "all" return all records.
	Status string
	// IncludeSpam includes spam-flagged records in the listing.
	IncludeSpam bool
	Limit       int
	Offset      int
}
