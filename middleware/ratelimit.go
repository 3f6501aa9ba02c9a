package middleware

import (
	"strconv"
	"time"

	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
)

// RateLimit throttles by player when authenticated, otherwise by client IP.
func RateLimit(rl *utils.RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if id := PlayerID(c); id > 0 {
			key = "player:" + strconv.FormatInt(id, 10)
		}
		if !rl.Allow(key) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(models.NewErrorResponse(fiber.StatusTooManyRequests, models.CodeRateLimited, "too many requests"))
		}
		return c.Next()
	}
}

// NewPlayLimiter is the bucket used in front of game play: 10 rounds per
// second sustained with bursts of 20.
func NewPlayLimiter() *utils.RateLimiter {
	return utils.NewRateLimiter(100*time.Millisecond, 20)
}
