package middleware

import (
	"net/http"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"github.com/jmgilman/go/errors"
	"golang.org/x/time/rate"
)

var rateLimitedTotal = metrics.GetOrCreateCounter("http_requests_rate_limited_total")

// WithRateLimit applies a single token bucket to every request. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			rateLimitedTotal.Inc()

			retryAfter := int(1/rps) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			err := errors.New(errors.CodeRateLimit, "too many requests")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errors.ToJSON(err))
			return
		}
		c.Next()
	}
}
