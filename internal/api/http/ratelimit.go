package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/candidate-identity-service/internal/config"
	apperrors "github.com/spec-kit/candidate-identity-service/pkg/util"
)

// RateLimiter bounds attempts per client and path over a fixed window,
// protecting the 4-digit code space from guessing. It fails open when Redis
// is unreachable so an outage never locks candidates out.
type RateLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
	logger *zap.Logger
}

// NewRateLimiter builds a Redis-backed limiter.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		max:    int64(cfg.MaxAttempts),
		window: cfg.Window(),
		logger: logger,
	}
}

// Handle enforces the limit for the current client and path.
func (rl *RateLimiter) Handle(c *fiber.Ctx) error {
	if rl == nil || rl.client == nil || rl.max <= 0 {
		return c.Next()
	}

	ctx := c.UserContext()
	key := "ratelimit:" + c.Path() + ":" + c.IP()

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		rl.logger.Warn("rate limiter unavailable", zap.Error(err))
		return c.Next()
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			rl.logger.Warn("rate limiter expire failed", zap.Error(err))
		}
	}
	if count > rl.max {
		return apperrors.NewDomainError("RATE_LIMITED", "too many attempts, please try again later", fiber.StatusTooManyRequests, nil)
	}
	return c.Next()
}
