package cachesvc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/virtualtutor/core"
)

// RedisRateLimiterStore is a fixed-window echo rate limiter store shared by every API instance.
// It lets requests through while redis is unreachable.
type RedisRateLimiterStore struct {
	client  *redis.Client
	logger  core.Logger
	prefix  string
	limit   int64
	window  time.Duration
	timeout time.Duration
}

var _ middleware.RateLimiterStore = (*RedisRateLimiterStore)(nil)

// hitScript counts a hit and opens the window of a counter that has none, in one round trip.
var hitScript = redis.NewScript(`
local cnt = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return cnt
`)

func NewRedisRateLimiterStore(client *redis.Client, logger core.Logger, prefix string, limit int, window time.Duration) *RedisRateLimiterStore {
	return &RedisRateLimiterStore{
		client:  client,
		logger:  logger,
		prefix:  prefix,
		limit:   int64(limit),
		window:  window,
		timeout: time.Second,
	}
}

func (s *RedisRateLimiterStore) hit(identifier string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := "rl:" + s.prefix + ":" + identifier
	cnt, err := hitScript.Run(ctx, s.client, []string{key}, s.window.Milliseconds()).Int64()
	return cnt, errors.Wrap(err, "counting rate limited hit")
}

// Allow counts a hit for identifier within the current window.
func (s *RedisRateLimiterStore) Allow(identifier string) (bool, error) {
	cnt, err := s.hit(identifier)
	if err != nil {
		s.logger.Warn("rate limiter unavailable, letting request through", err, map[string]interface{}{"prefix": s.prefix})
		return true, nil
	}
	return cnt <= s.limit, nil
}

// NewMemoryRateLimiterStore is the single-instance fallback: limit hits per window, per identifier.
func NewMemoryRateLimiterStore(limit int, window time.Duration) middleware.RateLimiterStore {
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(limit) / window.Seconds()),
		Burst:     limit,
		ExpiresIn: window,
	})
}
