package cache

import (
	"sync"
	"time"
)

// TTL is a process-local map whose entries go stale after a fixed freshness window.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]ttlEntry[V]
	swept   time.Time
}

type ttlEntry[V any] struct {
	value    V
	storedAt time.Time
}

func NewTTL[K comparable, V any](ttl time.Duration, now func() time.Time) *TTL[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[K, V]{ttl: ttl, now: now, entries: make(map[K]ttlEntry[V])}
}

// Get returns the value only while it is fresh.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if c.stale(e, c.now()) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value. With a zero ttl nothing is kept.
// Stale entries are purged at most once per freshness window.
func (c *TTL[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.swept) >= c.ttl {
		for k, e := range c.entries {
			if c.stale(e, now) {
				delete(c.entries, k)
			}
		}
		c.swept = now
	}
	c.entries[key] = ttlEntry[V]{value: value, storedAt: now}
}

func (c *TTL[K, V]) stale(e ttlEntry[V], now time.Time) bool {
	return now.Sub(e.storedAt) >= c.ttl
}

// Len reports how many entries are held, stale ones included.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Update applies fn to a fresh entry in place. Returns false when there was nothing fresh to patch.
// The freshness window is not extended.
func (c *TTL[K, V]) Update(key K, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.stale(e, c.now()) {
		delete(c.entries, key)
		return false
	}
	e.value = fn(e.value)
	c.entries[key] = e
	return true
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeleteFunc drops every entry whose key matches.
func (c *TTL[K, V]) DeleteFunc(match func(K) bool) {
	c.mu.Lock()
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]ttlEntry[V])
	c.mu.Unlock()
}
