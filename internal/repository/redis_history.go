package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHistory keeps the limiter's submission history in Redis sorted
// sets, one per identity, scored by the submission's unix timestamp.
// It satisfies limiter.HistoryStore for deployments that keep rate
// state out of Postgres. Unlike the Postgres store it must be written
// explicitly via Record on every accepted submission.
type RedisHistory struct {
	client *redis.Client
	// retention bounds how long entries survive; it must be at least
	// the limiter window.
	retention time.Duration
}

// NewRedisHistory creates a RedisHistory with the given retention.
func NewRedisHistory(client *redis.Client, retention time.Duration) *RedisHistory {
	return &RedisHistory{client: client, retention: retention}
}

func emailKey(email string) string { return "contact:history:email:" + email }
func ipKey(ip string) string       { return "contact:history:ip:" + ip }
func spamEmailKey(e string) string { return "contact:history:spam:email:" + e }
func spamIPKey(ip string) string   { return "contact:history:spam:ip:" + ip }

// Record registers one submission under both identities. Spam and
// non-spam land in separate sets so the limiter's counts stay cheap.
func (h *RedisHistory) Record(ctx context.Context, email, ip string, isSpam bool, at time.Time) error {
	keys := []string{emailKey(email), ipKey(ip)}
	if isSpam {
		keys = []string{spamEmailKey(email), spamIPKey(ip)}
	}
	member := strconv.FormatInt(at.UnixNano(), 10)
	pipe := h.client.TxPipeline()
	for _, key := range keys {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.Unix()), Member: member})
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(at.Add(-h.retention).Unix(), 10))
		pipe.Expire(ctx, key, h.retention)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (h *RedisHistory) countSince(ctx context.Context, key string, since time.Time) (int, error) {
	n, err := h.client.ZCount(ctx, key, strconv.FormatInt(since.Unix(), 10), "+inf").Result()
	return int(n), err
}

// CountRecentByEmail counts non-spam submissions from the email since
// the given time.
func (h *RedisHistory) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	return h.countSince(ctx, emailKey(email), since)
}

// CountRecentByIP counts non-spam submissions from the IP since the
// given time.
func (h *RedisHistory) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	return h.countSince(ctx, ipKey(ip), since)
}

// CountRecentSpam counts spam-flagged submissions from either
// identity. Each spam submission is recorded under both identities, so
// the larger of the two counts is the closest answer without double
// counting.
func (h *RedisHistory) CountRecentSpam(ctx context.Context, email, ip string, since time.Time) (int, error) {
	byEmail, err := h.countSince(ctx, spamEmailKey(email), since)
	if err != nil {
		return 0, err
	}
	byIP, err := h.countSince(ctx, spamIPKey(ip), since)
	if err != nil {
		return 0, err
	}
	if byIP > byEmail {
		return byIP, nil
	}
	return byEmail, nil
}
