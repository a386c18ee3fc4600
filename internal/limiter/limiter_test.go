package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// mockHistoryStore
// ---------------------------------------------------------------------------

type mockHistoryStore struct {
	emailFunc func(ctx context.Context, email string, since time.Time) (int, error)
	ipFunc    func(ctx context.Context, ip string, since time.Time) (int, error)
	spamFunc  func(ctx context.Context, email, ip string, since time.Time) (int, error)
}

func (m *mockHistoryStore) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	if m.emailFunc != nil {
		return m.emailFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *mockHistoryStore) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	if m.ipFunc != nil {
		return m.ipFunc(ctx, ip, since)
	}
	return 0, nil
}

func (m *mockHistoryStore) CountRecentSpam(ctx context.Context, email, ip string, since time.Time) (int, error) {
	if m.spamFunc != nil {
		return m.spamFunc(ctx, email, ip, since)
	}
	return 0, nil
}

func fixedCounts(email, ip, spam int) *mockHistoryStore {
	return &mockHistoryStore{
		emailFunc: func(context.Context, string, time.Time) (int, error) { return email, nil },
		ipFunc:    func(context.Context, string, time.Time) (int, error) { return ip, nil },
		spamFunc:  func(context.Context, string, string, time.Time) (int, error) { return spam, nil },
	}
}

// ---------------------------------------------------------------------------
// Threshold decisions
// ---------------------------------------------------------------------------

func TestCheck_Thresholds(t *testing.T) {
	tests := []struct {
		name            string
		email, ip, spam int
		wantOver        bool
	}{
		{"under all limits", 2, 1, 0, false},
		{"at email limit", 3, 0, 0, true},
		{"at ip limit regardless of email", 0, 5, 0, true},
		{"at spam limit", 0, 0, 2, true},
		{"just under everything", 2, 4, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(context.Background(), fixedCounts(tt.email, tt.ip, tt.spam),
				time.Now(), "a@example.com", "10.0.0.1", DefaultConfig())
			if res.IsOverLimit != tt.wantOver {
				t.Errorf("IsOverLimit=%v, want %v (counts %d/%d/%d)",
					res.IsOverLimit, tt.wantOver, tt.email, tt.ip, tt.spam)
			}
			if res.EmailCount != tt.email || res.IPCount != tt.ip || res.RecentSpamCount != tt.spam {
				t.Errorf("counts not echoed: got %d/%d/%d", res.EmailCount, res.IPCount, res.RecentSpamCount)
			}
			if res.StoreError {
				t.Error("StoreError set on healthy store")
			}
		})
	}
}

func TestCheck_SpamSignalDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecentSpam = 0

	spamCalled := false
	store := &mockHistoryStore{
		spamFunc: func(context.Context, string, string, time.Time) (int, error) {
			spamCalled = true
			return 99, nil
		},
	}

	res := Check(context.Background(), store, time.Now(), "a@example.com", "10.0.0.1", cfg)
	if spamCalled {
		t.Error("spam count queried while disabled")
	}
	if res.IsOverLimit {
		t.Error("over limit with zero counts")
	}
}

// ---------------------------------------------------------------------------
// Window propagation
// ---------------------------------------------------------------------------

func TestCheck_PassesWindowStart(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	var gotSince time.Time
	store := &mockHistoryStore{
		emailFunc: func(_ context.Context, _ string, since time.Time) (int, error) {
			gotSince = since
			return 0, nil
		},
	}

	Check(context.Background(), store, now, "a@example.com", "10.0.0.1", DefaultConfig())

	want := now.Add(-24 * time.Hour)
	if !gotSince.Equal(want) {
		t.Errorf("since=%v, want %v", gotSince, want)
	}
}

// ---------------------------------------------------------------------------
// Failure policy
// ---------------------------------------------------------------------------

func TestCheck_StoreErrorFailClosed(t *testing.T) {
	store := fixedCounts(0, 0, 0)
	store.ipFunc = func(context.Context, string, time.Time) (int, error) {
		return 0, errors.New("connection refused")
	}

	cfg := DefaultConfig()
	cfg.Policy = FailClosed
	res := Check(context.Background(), store, time.Now(), "a@example.com", "10.0.0.1", cfg)

	if !res.IsOverLimit {
		t.Error("fail-closed must block on store error")
	}
	if !res.StoreError {
		t.Error("StoreError not set")
	}
}

func TestCheck_StoreErrorFailOpen(t *testing.T) {
	store := fixedCounts(0, 0, 0)
	store.emailFunc = func(context.Context, string, time.Time) (int, error) {
		return 0, errors.New("connection refused")
	}

	cfg := DefaultConfig()
	cfg.Policy = FailOpen
	res := Check(context.Background(), store, time.Now(), "a@example.com", "10.0.0.1", cfg)

	if res.IsOverLimit {
		t.Error("fail-open must allow on store error")
	}
	if !res.StoreError {
		t.Error("StoreError not set")
	}
}

func TestCheck_MissingIdentityResolvesByPolicy(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Policy = FailClosed
	if res := Check(context.Background(), fixedCounts(0, 0, 0), time.Now(), "", "", cfg); !res.IsOverLimit {
		t.Error("missing identity with fail-closed must block")
	}

	cfg.Policy = FailOpen
	if res := Check(context.Background(), fixedCounts(0, 0, 0), time.Now(), "", "", cfg); res.IsOverLimit {
		t.Error("missing identity with fail-open must allow")
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

// The three queries run in parallel; a store that blocks until all
// three arrive proves they are not sequential.
func TestCheck_QueriesRunConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(3)
	barrier := func() {
		wg.Done()
		wg.Wait()
	}
	store := &mockHistoryStore{
		emailFunc: func(context.Context, string, time.Time) (int, error) { barrier(); return 1, nil },
		ipFunc:    func(context.Context, string, time.Time) (int, error) { barrier(); return 2, nil },
		spamFunc:  func(context.Context, string, string, time.Time) (int, error) { barrier(); return 0, nil },
	}

	done := make(chan Result, 1)
	go func() {
		done <- Check(context.Background(), store, time.Now(), "a@example.com", "10.0.0.1", DefaultConfig())
	}()

	select {
	case res := <-done:
		if res.EmailCount != 1 || res.IPCount != 2 {
			t.Errorf("unexpected counts: %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Check deadlocked; queries appear to run sequentially")
	}
}
