// Package cache is a small TTL cache. Owners create it, pass it to whoever
// needs it and Close it when done.
package cache

import (
	"sync"
	"time"
)

const defaultCleanupInterval = 5 * time.Minute

// Cache stores values with a fixed TTL. Expired entries are invisible to Get
// and are swept by a background goroutine until Close.
type Cache[K comparable, V any] struct {
	data map[K]entry[V]
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates a cache whose entries live for ttl. A non-positive ttl keeps
// entries until they are removed.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return newCache[K, V](ttl, defaultCleanupInterval)
}

func newCache[K comparable, V any](ttl, interval time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		data: make(map[K]entry[V]),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanup(interval)
	}
	return c
}

func (c *Cache[K, V]) expired(e entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// Get retrieves a live entry.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value, restarting its TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	e := entry[V]{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.data[key] = e
	c.mu.Unlock()
}

// Remove deletes an entry from the cache
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len counts stored entries, including expired ones not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close stops the cleanup goroutine. The cache stays usable.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.data {
		if c.expired(e) {
			delete(c.data, key)
		}
	}
}

// cleanup removes expired entries periodically
func (c *Cache[K, V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}
