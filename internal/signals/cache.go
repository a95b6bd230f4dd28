package signals

import (
	"sync"
	"time"

	"github.com/outfitlab/matchflow/internal/model"
)

// cacheEntry represents a cached style fingerprint.
type cacheEntry struct {
	expiry  time.Time
	signals *model.StyleSignals
}

// signalCache provides thread-safe, bounded caching for style signals.
// Eviction is oldest-first by insertion when the entry cap is reached.
type signalCache struct {
	entries    map[string]cacheEntry
	order      []string
	stopCh     chan struct{}
	ttl        time.Duration
	maxEntries int
	mu         sync.RWMutex
}

// newSignalCache creates a new cache with the specified TTL and bound.
func newSignalCache(ttl time.Duration, maxEntries int) *signalCache {
	if ttl == 0 {
		ttl = 20 * time.Minute // Default TTL
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}

	cache := &signalCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get retrieves signals from the cache if present and unexpired.
func (c *signalCache) get(key string) (*model.StyleSignals, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiry) {
		return nil, false
	}

	return entry.signals, true
}

// set stores signals in the cache, evicting the oldest entry when full.
func (c *signalCache) set(key string, signals *model.StyleSignals) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}

	c.entries[key] = cacheEntry{
		signals: signals,
		expiry:  time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *signalCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			kept := c.order[:0]
			for _, key := range c.order {
				entry, ok := c.entries[key]
				if !ok {
					continue
				}
				if now.After(entry.expiry) {
					delete(c.entries, key)
					continue
				}
				kept = append(kept, key)
			}
			c.order = kept
			c.mu.Unlock()
		}
	}
}

// clear removes all entries from the cache.
func (c *signalCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

// size returns the number of entries in the cache.
func (c *signalCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *signalCache) Close() {
	close(c.stopCh)
}
