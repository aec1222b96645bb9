package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/ratelimit"
)

// RateLimit admits requests through l keyed by ClientIdentity.  Rejected
// requests get 429 with Retry-After in whole seconds.
func RateLimit(l ratelimit.Limiter) echo.MiddlewareFunc {
	if l == nil {
		l = ratelimit.Disabled{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := l.Take(c.Request().Context(), ClientIdentity(c))
			WriteRateLimitHeaders(c, d)
			if !d.Allowed {
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"code":    "RATE_LIMITED",
					"message": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}

// WriteRateLimitHeaders sets X-RateLimit-* (when a limit applies) and
// Retry-After (when rejected).
func WriteRateLimitHeaders(c echo.Context, d ratelimit.Decision) {
	h := c.Response().Header()
	if d.Limit > 0 {
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	}
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(RetryAfterSeconds(d.RetryAfter.Seconds())))
	}
}

// RetryAfterSeconds rounds up to whole seconds, never below one.
func RetryAfterSeconds(secs float64) int {
	n := int(math.Ceil(secs))
	if n < 1 {
		n = 1
	}
	return n
}
