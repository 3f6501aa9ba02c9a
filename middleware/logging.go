package middleware

import (
	"sync/atomic"
	"time"

	"sweepsapp/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var requestCount uint64

// RequestLogger records every request in metrics and logs slow requests plus
// one in every sampleEvery.
func RequestLogger(slow time.Duration, sampleEvery uint64) fiber.Handler {
	if sampleEvery == 0 {
		sampleEvery = 100
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		n := atomic.AddUint64(&requestCount, 1)

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		// route pattern keeps path label cardinality bounded
		path := c.Route().Path
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Method(), path, status, duration)

		if duration > slow || n%sampleEvery == 0 {
			entry := logrus.WithFields(logrus.Fields{
				"method":   c.Method(),
				"path":     c.Path(),
				"duration": duration.Milliseconds(),
				"status":   status,
				"ip":       c.IP(),
			})
			if duration > slow {
				entry.Warn("Slow request detected")
			} else {
				entry.Info("Request sampled")
			}
		}
		return err
	}
}
