package middleware

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
)

type MetricsMiddleware struct {
	requestCounter   *metrics.Counter
	responseTimeHist *metrics.Histogram
	requestSizeHist  *metrics.Histogram
	responseSizeHist *metrics.Histogram
	cacheHitCounter  *metrics.Counter
	cacheMissCounter *metrics.Counter

	// extra sets are written after the global metrics on /metrics.
	extra []*metrics.Set
}

// NewMetricsMiddleware tracks requests in the default metrics registry.
// Sets passed in are exposed alongside them.
func NewMetricsMiddleware(extra ...*metrics.Set) *MetricsMiddleware {
	return &MetricsMiddleware{
		requestCounter:   metrics.GetOrCreateCounter("http_requests_total"),
		responseTimeHist: metrics.GetOrCreateHistogram("http_response_time_seconds"),
		requestSizeHist:  metrics.GetOrCreateHistogram("http_request_size_bytes"),
		responseSizeHist: metrics.GetOrCreateHistogram("http_response_size_bytes"),
		cacheHitCounter:  metrics.GetOrCreateCounter(`http_document_responses_total{cache="hit"}`),
		cacheMissCounter: metrics.GetOrCreateCounter(`http_document_responses_total{cache="miss"}`),
		extra:            extra,
	}
}

func (m *MetricsMiddleware) WithMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if c.Request.ContentLength > 0 {
			m.requestSizeHist.Update(float64(c.Request.ContentLength))
		}

		m.requestCounter.Inc()
		c.Next()

		m.responseTimeHist.UpdateDuration(start)
		if size := c.Writer.Size(); size > 0 {
			m.responseSizeHist.Update(float64(size))
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.GetOrCreateCounter(fmt.Sprintf(
			`http_response_status_total{route=%q,method=%q,code="%d"}`,
			route, c.Request.Method, c.Writer.Status(),
		)).Inc()

		switch c.Writer.Header().Get("X-Cache") {
		case "HIT":
			m.cacheHitCounter.Inc()
		case "MISS":
			m.cacheMissCounter.Inc()
		}
	}
}

// Handler serves the Prometheus exposition.
func (m *MetricsMiddleware) Handler(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	m.WritePrometheus(c.Writer)
}

func (m *MetricsMiddleware) WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
	for _, set := range m.extra {
		set.WritePrometheus(w)
	}
}
