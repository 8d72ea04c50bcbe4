package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"preference_server/pkg/apperr"
	"preference_server/pkg/ratelimit"
)

// tolerated clock skew for exp/iat checks
const jwtLeeway = time.Minute

// SecurityHeaders adds security headers to all responses.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}

// RateLimit throttles requests per user, falling back to the client IP.
func RateLimit(limiter *ratelimit.SlidingWindowLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			key = "user:" + userID
		}

		allowed, wait := limiter.Allow(c.UserContext(), key)
		c.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		if !allowed {
			retry := int(wait.Round(time.Second).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return apperr.New("RATE_LIMITED", "rate limit exceeded", fiber.StatusTooManyRequests).
				WithDetail("retry_after", retry)
		}
		return c.Next()
	}
}
