package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// RateLimit is one counter dimension applied to a request.
type RateLimit struct {
	Limit     int64
	Window    time.Duration
	LimitType string
}

func NewRateLimit(limit int64, window time.Duration, limitType string) (RateLimit, error) {
	if limit <= 0 {
		return RateLimit{}, errors.New("rate limit must be > 0")
	}
	if window <= 0 {
		return RateLimit{}, errors.New("rate limit window must be > 0")
	}
	if strings.TrimSpace(limitType) == "" {
		return RateLimit{}, errors.New("limit type is required")
	}
	return RateLimit{Limit: limit, Window: window, LimitType: limitType}, nil
}

// CounterKey is the storage key for this limit and client.
func (l RateLimit) CounterKey(ip ClientIP) string {
	return "ratelimit:" + l.LimitType + ":" + ip.HashForKey()
}

// NextReset computes when the counter window rolls over: the next UTC
// midnight for daily limits, the next hour boundary for hourly limits,
// otherwise the next minute boundary.
func (l RateLimit) NextReset(now time.Time) time.Time {
	now = now.UTC()
	switch {
	case strings.HasPrefix(l.LimitType, "daily"):
		return now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	case strings.Contains(l.LimitType, "hourly"):
		return now.Truncate(time.Hour).Add(time.Hour)
	default:
		return now.Truncate(time.Minute).Add(time.Minute)
	}
}

// RateLimitStatus is the short-lived projection of one counter after a
// check, used to shape response headers.
type RateLimitStatus struct {
	ClientIP  ClientIP
	LimitType string
	Count     int64
	Limit     int64
	ResetAt   time.Time
}

func (s RateLimitStatus) IsExceeded() bool {
	return s.Count > s.Limit
}

func (s RateLimitStatus) Remaining() int64 {
	remaining := s.Limit - s.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Headers projects the counter into the X-RateLimit-* response headers.
func (s RateLimitStatus) Headers() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.FormatInt(s.Limit, 10),
		"X-RateLimit-Remaining": strconv.FormatInt(s.Remaining(), 10),
		"X-RateLimit-Reset":     strconv.FormatInt(s.ResetAt.Unix(), 10),
	}
}
