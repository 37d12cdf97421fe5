package cache

import (
	"github.com/VictoriaMetrics/metrics"
)

// RegisterMetrics exposes the cache statistics as gauges on set. Counters are
// reported as gauges because Clear resets them.
func (c *DocumentCache) RegisterMetrics(set *metrics.Set) {
	set.NewGauge("document_cache_size_bytes", func() float64 {
		return float64(c.Stats().SizeBytes)
	})
	set.NewGauge("document_cache_entries", func() float64 {
		return float64(c.Len())
	})
	set.NewGauge("document_cache_hits", func() float64 {
		return float64(c.hits.Load())
	})
	set.NewGauge("document_cache_misses", func() float64 {
		return float64(c.misses.Load())
	})
	set.NewGauge("document_cache_evictions", func() float64 {
		return float64(c.evictions.Load())
	})
	set.NewGauge("document_cache_hit_ratio", func() float64 {
		return c.Stats().HitRatio
	})
}
