package web

import (
	"sync"
	"time"

	"liturgyd/internal/model"
)

// viewCache holds reconciled views per quarter. Invalidation is wholesale:
// any relevant mutation drops every entry rather than patching one, trading
// a recomputation on next access for freedom from partial-staleness bugs.
// Constructed per server instance, never package-level.
type viewCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]viewEntry
}

type viewEntry struct {
	view      model.ReconciledView
	updatedAt time.Time
}

// cacheStats is the debug-endpoint snapshot.
type cacheStats struct {
	Entries int      `json:"entries"`
	Keys    []string `json:"keys"`
}

func newViewCache(ttl time.Duration) *viewCache {
	return &viewCache{
		ttl:     ttl,
		entries: make(map[string]viewEntry),
	}
}

func (c *viewCache) Get(key string) (model.ReconciledView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.updatedAt) >= c.ttl {
		return model.ReconciledView{}, false
	}
	return e.view, true
}

func (c *viewCache) Put(key string, view model.ReconciledView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = viewEntry{view: view, updatedAt: time.Now()}
}

// Invalidate discards every cached view.
func (c *viewCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]viewEntry)
}

func (c *viewCache) Stats() cacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := cacheStats{Entries: len(c.entries), Keys: make([]string, 0, len(c.entries))}
	for k := range c.entries {
		s.Keys = append(s.Keys, k)
	}
	return s
}
