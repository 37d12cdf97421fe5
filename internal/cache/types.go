package cache

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// Document is a rendered invoice as seen by the cache. Implementations must be
// immutable once handed to Set; the cache shares them by reference.
type Document interface {
	PageCount() int
	// FirstPageSize reports the media box of the first page in points.
	FirstPageSize() (width, height float64)
}

// Entry represents a cached document with its accounting metadata
type Entry struct {
	Key      uuid.UUID
	Document Document
	Size     int64

	// seq is the clock value at insertion and breaks recency ties.
	seq          uint64
	lastAccessed atomic.Uint64
}

// LastAccessed returns the logical time of the last insertion or hit.
func (e *Entry) LastAccessed() uint64 {
	return e.lastAccessed.Load()
}

// Cache configuration
const (
	DefaultMaxTotalSizeBytes      = 50_000_000
	DefaultMaxEntryCount          = 20
	DefaultMinEvictionBatch       = 5
	DefaultEvictionTargetFraction = 0.25

	// BytesPerPage is the per-page budget used by EstimateSize.
	BytesPerPage = 50_000
	// LetterAreaPoints is 8.5in x 11in at 72 DPI.
	LetterAreaPoints        = 612 * 792
	OversizedPageMultiplier = 1.5
)

// Config holds the fixed limits of a DocumentCache.
type Config struct {
	// MaxTotalSizeBytes bounds the sum of estimated entry sizes.
	MaxTotalSizeBytes int64
	// MaxEntryCount bounds the number of entries.
	MaxEntryCount int
	// MinEvictionBatch is the fewest entries removed by one eviction pass.
	MinEvictionBatch int
	// EvictionTargetFraction is the share of MaxTotalSizeBytes an eviction
	// pass must free before it stops. Zero disables the byte target.
	EvictionTargetFraction float64
	// Logger receives eviction records at debug level. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the limits used by the service when nothing is
// configured: 50 MB, 20 entries, batches of at least 5 freeing a quarter.
func DefaultConfig() Config {
	return Config{
		MaxTotalSizeBytes:      DefaultMaxTotalSizeBytes,
		MaxEntryCount:          DefaultMaxEntryCount,
		MinEvictionBatch:       DefaultMinEvictionBatch,
		EvictionTargetFraction: DefaultEvictionTargetFraction,
	}
}

func (c Config) normalized() Config {
	if c.MaxTotalSizeBytes <= 0 {
		c.MaxTotalSizeBytes = DefaultMaxTotalSizeBytes
	}
	if c.MaxEntryCount <= 0 {
		c.MaxEntryCount = DefaultMaxEntryCount
	}
	if c.MinEvictionBatch < 1 {
		c.MinEvictionBatch = 1
	}
	if c.EvictionTargetFraction < 0 {
		c.EvictionTargetFraction = 0
	}
	if c.EvictionTargetFraction > 1 {
		c.EvictionTargetFraction = 1
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}
