package cache

import (
	"sort"
)

// EstimateSize returns the accounting size of doc: BytesPerPage for every
// page, scaled by OversizedPageMultiplier when the first page is larger than
// US Letter. The figure is a capacity policy, not a byte count of the PDF.
func EstimateSize(doc Document) int64 {
	if doc == nil {
		return 0
	}

	pages := doc.PageCount()
	if pages <= 0 {
		return 0
	}

	size := int64(pages) * BytesPerPage
	if w, h := doc.FirstPageSize(); w*h > LetterAreaPoints {
		size = int64(float64(size) * OversizedPageMultiplier)
	}
	return size
}

// evict removes least recently used entries until the pass has removed at
// least MinEvictionBatch entries, freed the configured share of the size
// limit, and left room for an incoming entry of incoming bytes. Running out of
// entries ends the pass early. Callers must hold the write lock.
func (c *DocumentCache) evict(incoming int64) {
	candidates := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		candidates = append(candidates, entry)
	}

	sort.Slice(candidates, func(i, j int) bool {
		ai, aj := candidates[i].LastAccessed(), candidates[j].LastAccessed()
		if ai != aj {
			return ai < aj
		}
		return candidates[i].seq < candidates[j].seq
	})

	target := int64(c.cfg.EvictionTargetFraction * float64(c.cfg.MaxTotalSizeBytes))

	var removed int
	var freed int64
	for _, entry := range candidates {
		if removed >= c.cfg.MinEvictionBatch && freed >= target && c.hasRoom(incoming) {
			break
		}

		delete(c.entries, entry.Key)
		c.currentSize -= entry.Size
		freed += entry.Size
		removed++
	}

	c.evictions.Add(uint64(removed))

	c.cfg.Logger.Debug("cache eviction completed",
		"entries_removed", removed,
		"bytes_freed", freed,
		"entries_remaining", len(c.entries),
		"size_remaining", c.currentSize,
	)
}

func (c *DocumentCache) hasRoom(incoming int64) bool {
	return c.currentSize+incoming <= c.cfg.MaxTotalSizeBytes &&
		len(c.entries) < c.cfg.MaxEntryCount
}
