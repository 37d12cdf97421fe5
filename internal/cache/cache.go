// Package cache holds rendered invoice documents in memory, bounded by total
// estimated size and entry count, evicting least recently used entries in
// batches.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DocumentCache maps invoice identifiers to rendered documents.
//
// Lookups share a read lock and record recency and hit statistics with
// atomics, so concurrent Get calls never block each other. Set, Remove and
// Clear hold the write lock.
type DocumentCache struct {
	cfg Config

	mu          sync.RWMutex
	entries     map[uuid.UUID]*Entry
	currentSize int64

	clock     atomic.Uint64
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a DocumentCache with the given limits. Non-positive maxima fall
// back to the defaults.
func New(cfg Config) *DocumentCache {
	return &DocumentCache{
		cfg:     cfg.normalized(),
		entries: make(map[uuid.UUID]*Entry),
	}
}

// Get returns the document cached under key. A hit refreshes the entry's
// recency.
func (c *DocumentCache) Get(key uuid.UUID) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	entry.lastAccessed.Store(c.clock.Add(1))
	c.hits.Add(1)
	return entry.Document, true
}

// Set stores doc under key, replacing any previous document for that key.
// Eviction runs first when the new entry would overflow either limit. A
// document larger than the whole size limit is still admitted.
func (c *DocumentCache) Set(key uuid.UUID, doc Document) {
	size := EstimateSize(doc)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.currentSize -= old.Size
	}

	if c.shouldEvict(size) {
		c.evict(size)
	}

	now := c.clock.Add(1)
	entry := &Entry{
		Key:      key,
		Document: doc,
		Size:     size,
		seq:      now,
	}
	entry.lastAccessed.Store(now)

	c.entries[key] = entry
	c.currentSize += size
}

// Remove drops the entry for key. Absent keys are ignored.
func (c *DocumentCache) Remove(key uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.currentSize -= entry.Size
	}
}

// Clear drops every entry and resets all counters.
func (c *DocumentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uuid.UUID]*Entry)
	c.currentSize = 0
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// Len returns the number of cached entries.
func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether key is cached without touching recency or
// statistics.
func (c *DocumentCache) Contains(key uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Config returns the normalized limits the cache runs with.
func (c *DocumentCache) Config() Config {
	return c.cfg
}

func (c *DocumentCache) shouldEvict(newSize int64) bool {
	return c.currentSize+newSize > c.cfg.MaxTotalSizeBytes ||
		len(c.entries) >= c.cfg.MaxEntryCount
}
