package cache

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"wikimetron/internal/ports"
)

// TTLCache is a concurrency-safe, short-lived response cache. It is scoped to
// one task run and handed to that run's workers; it is never a process-wide
// singleton shared across unrelated tasks.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     any
	expiresAt time.Time
}

var _ ports.Cache = (*TTLCache)(nil)

// New builds an empty cache.
func New() *TTLCache {
	return &TTLCache{entries: make(map[string]entry)}
}

// Get returns the cached value when present and not expired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Put stores a value until the ttl elapses. A non-positive ttl stores
// nothing.
func (c *TTLCache) Put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Len returns the number of live entries, counting expired ones that have
// not been touched yet.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key builds the canonical cache key (operation, title, lang, paramHash).
func Key(op, title, lang string, params ...any) string {
	h := fnv.New64a()
	for _, p := range params {
		fmt.Fprintf(h, "%v|", p)
	}
	return fmt.Sprintf("%s|%s|%s|%x", op, lang, title, h.Sum64())
}
