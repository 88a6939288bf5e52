package httpx

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisRateLimiter shares rate windows across API replicas. On any Redis
// failure it fails open so the dashboard stays readable.
type redisRateLimiter struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisRateLimiter{
		client:  client,
		logger:  logger,
		prefix:  "openalex:ratelimit:",
		timeout: 250 * time.Millisecond,
	}, nil
}

func (rl *redisRateLimiter) Allow(key string, policy RatePolicy) rateDecision {
	if !policy.enabled() {
		return rateDecision{allowed: true}
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	used, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logFailure("incr", err)
		return rateDecision{allowed: true}
	}
	if used == 1 {
		if err := rl.client.Expire(ctx, redisKey, policy.window()).Err(); err != nil {
			rl.logFailure("expire", err)
		}
	}
	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = policy.window()
	}
	remaining := policy.Limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return rateDecision{
		allowed:   int(used) <= policy.Limit,
		remaining: remaining,
		resetAt:   time.Now().Add(ttl),
	}
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisRateLimiter) logFailure(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter unavailable", "op", op, "error", err)
}
