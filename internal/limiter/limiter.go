// Package limiter decides whether a contact submission from a given
// (email, IP) pair is allowed, based on how many submissions the same
// identities made in a trailing window. It holds no state of its own:
// all history lives in the HistoryStore the caller passes in.
package limiter

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// HistoryStore answers windowed submission counts. Implementations
// must be safe for concurrent use; the three queries of one Check run
// in parallel.
type HistoryStore interface {
	// CountRecentByEmail counts non-spam submissions from email since
	// the given time.
	CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error)

	// CountRecentByIP counts non-spam submissions from the IP since
	// the given time.
	CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error)

	// CountRecentSpam counts spam-flagged submissions from either
	// identity since the given time.
	CountRecentSpam(ctx context.Context, email, ip string, since time.Time) (int, error)
}

// FailPolicy resolves the verdict when the history store errors.
type FailPolicy string

const (
	// FailOpen allows the submission when history is unavailable.
	FailOpen FailPolicy = "open"
	// FailClosed blocks the submission when history is unavailable.
	// This is the default.
	FailClosed FailPolicy = "closed"
)

// Config carries the limiter thresholds.
type Config struct {
	// Window is the trailing interval over which counts are taken.
	Window time.Duration
	// MaxPerEmail blocks when the email's non-spam count reaches it.
	MaxPerEmail int
	// MaxPerIP blocks when the IP's non-spam count reaches it.
	MaxPerIP int
	// MaxRecentSpam blocks when the spam-flagged count from either
	// identity reaches it. Zero disables the spam signal.
	MaxRecentSpam int
	// Policy selects fail-open or fail-closed on store errors.
	Policy FailPolicy
}

// DefaultConfig returns the canonical limiter thresholds: 3 per email,
// 5 per IP, 2 recent spam, over a 24h window, failing closed.
func DefaultConfig() Config {
	return Config{
		Window:        24 * time.Hour,
		MaxPerEmail:   3,
		MaxPerIP:      5,
		MaxRecentSpam: 2,
		Policy:        FailClosed,
	}
}

// Result is the limiter's answer for one submission. StoreError marks
// a verdict that came from the failure policy rather than real counts,
// so callers can tell a policy block from a genuine over-limit.
type Result struct {
	EmailCount      int  `json:"email_count"`
	IPCount         int  `json:"ip_count"`
	RecentSpamCount int  `json:"recent_spam_count,omitempty"`
	IsOverLimit     bool `json:"is_over_limit"`
	StoreError      bool `json:"-"`
}

// Check queries the store for the identity's recent history and
// returns the rate verdict. It never returns an error: store failures
// resolve through cfg.Policy. The caller's ctx bounds the queries.
func Check(ctx context.Context, store HistoryStore, now time.Time, email, ip string, cfg Config) Result {
	if email == "" && ip == "" {
		// No identity to count against. Resolve conservatively.
		return Result{IsOverLimit: cfg.Policy == FailClosed, StoreError: true}
	}

	since := now.Add(-cfg.Window)

	var emailCount, ipCount, spamCount int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emailCount, err = store.CountRecentByEmail(gctx, email, since)
		return err
	})
	g.Go(func() error {
		var err error
		ipCount, err = store.CountRecentByIP(gctx, ip, since)
		return err
	})
	if cfg.MaxRecentSpam > 0 {
		g.Go(func() error {
			var err error
			spamCount, err = store.CountRecentSpam(gctx, email, ip, since)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Result{IsOverLimit: cfg.Policy == FailClosed, StoreError: true}
	}

	over := emailCount >= cfg.MaxPerEmail || ipCount >= cfg.MaxPerIP
	if cfg.MaxRecentSpam > 0 && spamCount >= cfg.MaxRecentSpam {
		over = true
	}
	return Result{
		EmailCount:      emailCount,
		IPCount:         ipCount,
		RecentSpamCount: spamCount,
		IsOverLimit:     over,
	}
}
