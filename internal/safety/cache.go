package safety

import (
	"sync"
	"time"

	"github.com/outfitlab/matchflow/internal/model"
)

// verdictEntry is one cached batch outcome.
type verdictEntry struct {
	expiry          time.Time
	verdicts        []model.SafetyVerdict
	effectiveDryRun bool
}

// verdictCache provides thread-safe TTL caching of batch verdicts keyed by
// the confidence-stripped request hash.
type verdictCache struct {
	entries map[string]verdictEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// newVerdictCache creates a cache with the specified TTL.
func newVerdictCache(ttl time.Duration) *verdictCache {
	if ttl == 0 {
		ttl = 30 * time.Minute // Default TTL
	}

	cache := &verdictCache{
		entries: make(map[string]verdictEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get returns the cached verdicts, re-stamped with cache provenance.
func (c *verdictCache) get(key string) ([]model.SafetyVerdict, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false, false
	}
	if time.Now().After(entry.expiry) {
		return nil, false, false
	}

	out := make([]model.SafetyVerdict, len(entry.verdicts))
	copy(out, entry.verdicts)
	for i := range out {
		out[i].Provenance = model.ProvenanceCache
	}
	return out, entry.effectiveDryRun, true
}

// set stores a batch outcome.
func (c *verdictCache) set(key string, verdicts []model.SafetyVerdict, effectiveDryRun bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]model.SafetyVerdict, len(verdicts))
	copy(stored, verdicts)

	c.entries[key] = verdictEntry{
		verdicts:        stored,
		effectiveDryRun: effectiveDryRun,
		expiry:          time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *verdictCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *verdictCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *verdictCache) Close() {
	close(c.stopCh)
}
