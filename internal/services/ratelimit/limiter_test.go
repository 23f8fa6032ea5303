package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"mediafetch/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 30, 45, 0, time.UTC)

type fakeCounterRepo struct {
	counts   map[string]int64
	expiries map[string]time.Duration
	err      error
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{
		counts:   make(map[string]int64),
		expiries: make(map[string]time.Duration),
	}
}

func (f *fakeCounterRepo) Increment(_ context.Context, key string, limit int64, expiry time.Duration) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	count := f.counts[key]
	if count >= limit {
		return count, false, nil
	}
	if count == 0 {
		f.expiries[key] = expiry
	}
	f.counts[key] = count + 1
	return count + 1, true, nil
}

func (f *fakeCounterRepo) Count(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[key], nil
}

func (f *fakeCounterRepo) Reset(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.counts, key)
	return nil
}

func mustIP(t *testing.T, raw string) domain.ClientIP {
	t.Helper()
	ip, err := domain.ParseClientIP(raw)
	if err != nil {
		t.Fatalf("ParseClientIP(%q): %v", raw, err)
	}
	return ip
}

func mustLimit(t *testing.T, limit int64, window time.Duration, limitType string) domain.RateLimit {
	t.Helper()
	l, err := domain.NewRateLimit(limit, window, limitType)
	if err != nil {
		t.Fatalf("NewRateLimit: %v", err)
	}
	return l
}

func newLimiter(repo *fakeCounterRepo) Limiter {
	return Limiter{
		Repo:    repo,
		Enabled: true,
		Logger:  slog.Default(),
		Now:     func() time.Time { return testNow },
	}
}

func TestLimiterAdmitsUnderLimit(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	ip := mustIP(t, "203.0.113.1")
	daily := mustLimit(t, 5, 24*time.Hour, "daily_video-only")

	for i := 1; i <= 5; i++ {
		status, err := limiter.CheckAndIncrement(context.Background(), ip, daily)
		if err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
		if status.Count != int64(i) {
			t.Fatalf("count = %d, want %d", status.Count, i)
		}
	}
	if repo.counts[daily.CounterKey(ip)] != 5 {
		t.Fatalf("stored count = %d", repo.counts[daily.CounterKey(ip)])
	}
}

func TestLimiterRejectsOverLimit(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	ip := mustIP(t, "203.0.113.1")
	daily := mustLimit(t, 5, 24*time.Hour, "daily_video-only")

	for i := 0; i < 5; i++ {
		if _, err := limiter.CheckAndIncrement(context.Background(), ip, daily); err != nil {
			t.Fatalf("setup request rejected: %v", err)
		}
	}
	_, err := limiter.CheckAndIncrement(context.Background(), ip, daily)
	var exceeded *LimitExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("err = %v, want LimitExceededError", err)
	}
	if exceeded.Status.LimitType != "daily_video-only" {
		t.Fatalf("limitType = %s", exceeded.Status.LimitType)
	}
	if exceeded.Status.Remaining() != 0 {
		t.Fatalf("remaining = %d", exceeded.Status.Remaining())
	}
	wantReset := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !exceeded.Status.ResetAt.Equal(wantReset) {
		t.Fatalf("resetAt = %v, want next UTC midnight %v", exceeded.Status.ResetAt, wantReset)
	}
	// The rejected attempt must not have consumed a slot.
	if repo.counts[daily.CounterKey(ip)] != 5 {
		t.Fatalf("stored count = %d after rejection, want 5", repo.counts[daily.CounterKey(ip)])
	}

	// Flushing the counter readmits the client.
	if err := limiter.Reset(context.Background(), ip, daily); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := limiter.CheckAndIncrement(context.Background(), ip, daily); err != nil {
		t.Fatalf("post-reset request rejected: %v", err)
	}
}

func TestLimiterTightestDimensionWins(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	ip := mustIP(t, "203.0.113.1")
	perMinute := mustLimit(t, 100, time.Minute, "per_minute_batch")
	daily := mustLimit(t, 3, 24*time.Hour, "daily_total")

	status, err := limiter.CheckAndIncrement(context.Background(), ip, perMinute, daily)
	if err != nil {
		t.Fatalf("CheckAndIncrement: %v", err)
	}
	if status.LimitType != "daily_total" {
		t.Fatalf("tightest = %s, want daily_total", status.LimitType)
	}
	if status.Remaining() != 2 {
		t.Fatalf("remaining = %d", status.Remaining())
	}
}

func TestLimiterWhitelistBypass(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	limiter.Whitelist = []string{"10.0.0.1"}
	ip := mustIP(t, "10.0.0.1")
	daily := mustLimit(t, 2, 24*time.Hour, "daily_video-only")

	for i := 0; i < 20; i++ {
		status, err := limiter.CheckAndIncrement(context.Background(), ip, daily)
		if err != nil {
			t.Fatalf("whitelisted request %d rejected: %v", i, err)
		}
		if status.Remaining() != daily.Limit {
			t.Fatalf("remaining = %d, want full allowance", status.Remaining())
		}
	}
	if len(repo.counts) != 0 {
		t.Fatalf("whitelisted traffic touched counters: %v", repo.counts)
	}
}

func TestLimiterDisabled(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	limiter.Enabled = false
	ip := mustIP(t, "203.0.113.1")
	daily := mustLimit(t, 1, 24*time.Hour, "daily_total")

	for i := 0; i < 10; i++ {
		if _, err := limiter.CheckAndIncrement(context.Background(), ip, daily); err != nil {
			t.Fatalf("request rejected with limiting disabled: %v", err)
		}
	}
	if len(repo.counts) != 0 {
		t.Fatalf("disabled limiter touched counters: %v", repo.counts)
	}
}

func TestLimiterFailsOpenOnStoreErrors(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	ip := mustIP(t, "203.0.113.1")
	daily := mustLimit(t, 1, 24*time.Hour, "daily_total")

	repo.err = errors.New("connection refused")
	for i := 0; i < 5; i++ {
		if _, err := limiter.CheckAndIncrement(context.Background(), ip, daily); err != nil {
			t.Fatalf("store outage must admit, got %v", err)
		}
	}

	// Counting resumes once the store recovers.
	repo.err = nil
	status, err := limiter.CheckAndIncrement(context.Background(), ip, daily)
	if err != nil {
		t.Fatalf("post-recovery request rejected: %v", err)
	}
	if status.Count != 1 {
		t.Fatalf("post-recovery count = %d", status.Count)
	}
}

func TestLimiterCounterExpiryMatchesAdvertisedReset(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	ip := mustIP(t, "203.0.113.1")

	// testNow is 12:30:45 UTC, so a daily counter first touched now must
	// die at midnight, not 24 h later.
	cases := []struct {
		limit domain.RateLimit
		want  time.Duration
	}{
		{mustLimit(t, 5, 24*time.Hour, "daily_total"), 11*time.Hour + 29*time.Minute + 15*time.Second},
		{mustLimit(t, 30, time.Hour, "hourly_endpoint:/api/v1/videos/resolutions"), 29*time.Minute + 15*time.Second},
		{mustLimit(t, 100, time.Minute, "per_minute_batch"), 15 * time.Second},
	}
	for _, tc := range cases {
		if _, err := limiter.CheckAndIncrement(context.Background(), ip, tc.limit); err != nil {
			t.Fatalf("CheckAndIncrement(%s): %v", tc.limit.LimitType, err)
		}
		if got := repo.expiries[tc.limit.CounterKey(ip)]; got != tc.want {
			t.Fatalf("%s expiry = %v, want %v", tc.limit.LimitType, got, tc.want)
		}
	}
}

func TestLimiterStatusReadsWithoutIncrement(t *testing.T) {
	repo := newFakeCounterRepo()
	limiter := newLimiter(repo)
	ip := mustIP(t, "203.0.113.1")
	hourly := mustLimit(t, 30, time.Hour, "hourly_endpoint:/api/v1/videos/resolutions")

	if _, err := limiter.CheckAndIncrement(context.Background(), ip, hourly); err != nil {
		t.Fatalf("CheckAndIncrement: %v", err)
	}
	status, err := limiter.Status(context.Background(), ip, hourly)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Count != 1 || status.Remaining() != 29 {
		t.Fatalf("status = %+v", status)
	}
	wantReset := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)
	if !status.ResetAt.Equal(wantReset) {
		t.Fatalf("resetAt = %v, want next hour %v", status.ResetAt, wantReset)
	}
}
