package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SecurityHeaders adds security response headers (CSP, X-Frame-Options, etc.)
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-XSS-Protection", "0")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// MaxBody rejects request bodies larger than n bytes.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin checks the Authorization bearer token against the
// configured admin token. An empty configured token disables the
// endpoints entirely.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Throttle provides per-IP request throttling with token buckets,
// one bucket per client, pruned when idle.
type Throttle struct {
	mu      sync.Mutex
	clients map[string]*throttleEntry

	rps               rate.Limit
	burst             int
	trustedProxyCount int
	idleTTL           time.Duration
	retryAfter        time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewThrottle creates a throttle allowing perMinute requests per IP,
// with a burst of the same size.
func NewThrottle(perMinute, trustedProxyCount int) *Throttle {
	t := &Throttle{
		clients:           make(map[string]*throttleEntry),
		rps:               rate.Limit(float64(perMinute) / 60.0),
		burst:             perMinute,
		trustedProxyCount: trustedProxyCount,
		idleTTL:           15 * time.Minute,
		retryAfter:        time.Minute / time.Duration(max(perMinute, 1)),
	}
	go t.cleanupLoop(5 * time.Minute)
	return t
}

func (t *Throttle) limiterFor(ip string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.clients[ip]
	if !ok {
		e = &throttleEntry{lim: rate.NewLimiter(t.rps, t.burst)}
		t.clients[ip] = e
	}
	e.lastSeen = now
	return e.lim
}

// cleanupLoop periodically removes buckets not seen within idleTTL.
func (t *Throttle) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-t.idleTTL)
		t.mu.Lock()
		for ip, e := range t.clients {
			if e.lastSeen.Before(cutoff) {
				delete(t.clients, ip)
			}
		}
		t.mu.Unlock()
	}
}

// Middleware returns an http.Handler that enforces the throttle.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, t.trustedProxyCount)
		if !t.limiterFor(ip, time.Now()).Allow() {
			w.Header().Set("Retry-After", retryAfterSeconds(t.retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP extracts the real client IP, reading from the rightmost
// trusted proxy position in X-Forwarded-For to prevent spoofing.
func clientIP(r *http.Request, trustedProxyCount int) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && trustedProxyCount > 0 {
		parts := strings.Split(xff, ",")
		// The rightmost entry added by our infrastructure is at
		// index len(parts) - trustedProxyCount.
		idx := len(parts) - trustedProxyCount
		if idx >= 0 && idx < len(parts) {
			return strings.TrimSpace(parts[idx])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// decodeJSON decodes a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
