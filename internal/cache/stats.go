package cache

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats is a point-in-time view of a DocumentCache.
type Stats struct {
	Size    string `json:"size"`
	Entries int    `json:"entries"`
	HitRate string `json:"hit_rate"`

	SizeBytes    int64   `json:"size_bytes"`
	MaxSizeBytes int64   `json:"max_size_bytes"`
	MaxEntries   int     `json:"max_entries"`
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	Evictions    uint64  `json:"evictions"`
	HitRatio     float64 `json:"hit_ratio"`
}

// Stats returns the current size in binary units, the entry count and the hit
// rate as a percentage with one decimal.
func (c *DocumentCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	size := c.currentSize
	if size < 0 {
		size = 0
	}

	return Stats{
		Size:         humanize.IBytes(uint64(size)),
		Entries:      len(c.entries),
		HitRate:      fmt.Sprintf("%.1f%%", ratio*100),
		SizeBytes:    size,
		MaxSizeBytes: c.cfg.MaxTotalSizeBytes,
		MaxEntries:   c.cfg.MaxEntryCount,
		Hits:         hits,
		Misses:       misses,
		Evictions:    c.evictions.Load(),
		HitRatio:     ratio,
	}
}
