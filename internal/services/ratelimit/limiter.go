package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
)

// LimitExceededError carries the counter state the HTTP edge needs for
// the 429 body and the X-RateLimit-* headers.
type LimitExceededError struct {
	Status domain.RateLimitStatus
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s resets at %s",
		e.Status.LimitType, e.Status.ResetAt.UTC().Format(time.RFC3339))
}

// Limiter enforces the configured counter dimensions against the shared
// store. Store failures are logged and the request admitted: limiting
// must never take the whole service down with it.
type Limiter struct {
	Repo      ports.RateLimitRepository
	Enabled   bool
	Whitelist []string
	Logger    *slog.Logger
	Now       func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l Limiter) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// CheckAndIncrement runs every applicable counter for the client and
// reports the tightest one for header shaping. Each counter is an
// atomic check-then-increment at the store: a rejected request does not
// consume a slot in its window. The counter expiry is the time left
// until the advertised reset, so daily quota refreshes at UTC midnight
// no matter when the counter was first touched. A *LimitExceededError
// is returned the moment any dimension is at its bound.
func (l Limiter) CheckAndIncrement(ctx context.Context, ip domain.ClientIP, limits ...domain.RateLimit) (domain.RateLimitStatus, error) {
	now := l.now()

	if !l.Enabled || len(limits) == 0 {
		return passThroughStatus(ip, limits, now), nil
	}
	if ip.IsWhitelisted(l.Whitelist) {
		return passThroughStatus(ip, limits, now), nil
	}

	tightest := passThroughStatus(ip, limits, now)
	first := true
	for _, limit := range limits {
		resetAt := limit.NextReset(now)
		count, allowed, err := l.Repo.Increment(ctx, limit.CounterKey(ip), limit.Limit, resetAt.Sub(now))
		if err != nil {
			// Fail open: the store being down must not reject traffic.
			l.logger().Error("rate limit store failure, admitting request",
				slog.String("limitType", limit.LimitType),
				slog.String("error", err.Error()),
			)
			continue
		}
		status := domain.RateLimitStatus{
			ClientIP:  ip,
			LimitType: limit.LimitType,
			Count:     count,
			Limit:     limit.Limit,
			ResetAt:   resetAt,
		}
		if !allowed {
			return status, &LimitExceededError{Status: status}
		}
		if first || status.Remaining() < tightest.Remaining() {
			tightest = status
			first = false
		}
	}
	return tightest, nil
}

// Status reads the counters without incrementing, for introspection.
func (l Limiter) Status(ctx context.Context, ip domain.ClientIP, limit domain.RateLimit) (domain.RateLimitStatus, error) {
	count, err := l.Repo.Count(ctx, limit.CounterKey(ip))
	if err != nil {
		return domain.RateLimitStatus{}, err
	}
	return domain.RateLimitStatus{
		ClientIP:  ip,
		LimitType: limit.LimitType,
		Count:     count,
		Limit:     limit.Limit,
		ResetAt:   limit.NextReset(l.now()),
	}, nil
}

// Reset clears the client's counters for the given limits.
func (l Limiter) Reset(ctx context.Context, ip domain.ClientIP, limits ...domain.RateLimit) error {
	for _, limit := range limits {
		if err := l.Repo.Reset(ctx, limit.CounterKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// passThroughStatus is the synthetic full-allowance projection used for
// whitelisted clients and when limiting is disabled.
func passThroughStatus(ip domain.ClientIP, limits []domain.RateLimit, now time.Time) domain.RateLimitStatus {
	status := domain.RateLimitStatus{
		ClientIP:  ip,
		LimitType: "disabled",
		ResetAt:   now.Truncate(time.Minute).Add(time.Minute),
	}
	if len(limits) > 0 {
		status.LimitType = limits[0].LimitType
		status.Limit = limits[0].Limit
		status.ResetAt = limits[0].NextReset(now)
	}
	return status
}
