package redisrepo

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript reads the counter, refuses the bump when the bound is
// already reached, otherwise increments and arms the expiry on first
// use. Check and increment happen in one atomic step so concurrent
// clients cannot slip past the bound, and the expiry makes an abandoned
// counter decay at the window boundary.
var incrementScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
  return {count, 0}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {count, 1}
`)

// RateLimitRepository backs the distributed request counters.
type RateLimitRepository struct {
	client *redis.Client
}

func NewRateLimitRepository(client *redis.Client) *RateLimitRepository {
	return &RateLimitRepository{client: client}
}

func (r *RateLimitRepository) Increment(ctx context.Context, key string, limit int64, expiry time.Duration) (int64, bool, error) {
	if limit <= 0 {
		return 0, false, errors.New("rate limit bound must be positive")
	}
	if expiry <= 0 {
		return 0, false, errors.New("rate limit expiry must be positive")
	}
	reply, err := incrementScript.Run(ctx, r.client, []string{key}, limit, expiry.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(reply) != 2 {
		return 0, false, errors.New("unexpected counter script reply")
	}
	return reply[0], reply[1] == 1, nil
}

func (r *RateLimitRepository) Count(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (r *RateLimitRepository) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
