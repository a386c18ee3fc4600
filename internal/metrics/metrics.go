// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes recorded on SubmissionsTotal.
const (
	OutcomeAccepted    = "accepted"
	OutcomeSpam        = "spam"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

var (
	// SubmissionsTotal counts contact form submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Total number of contact form submissions by outcome",
		},
		[]string{"outcome"},
	)

	// SpamScore tracks the distribution of computed spam scores.
	SpamScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contact_spam_score",
			Help:    "Spam scores computed for contact submissions",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0..10
		},
	)

	// HTTPRequestDuration tracks request latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordSubmission increments the outcome counter.
func RecordSubmission(outcome string) {
	SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSpamScore records one computed score.
func ObserveSpamScore(score int) {
	SpamScore.Observe(float64(score))
}

// ObserveHTTPRequest records one request's duration.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
