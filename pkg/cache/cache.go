package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a TTL-bounded cache for one class of key (statistics, per-item
// history). Writes on the corresponding path must invalidate synchronously;
// readers accept staleness up to the TTL.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New creates a cache holding at most size entries, each expiring after ttl
func New[V any](size int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Get returns the cached value for key and whether it was present and fresh
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

// Set stores a value under key, resetting its TTL
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Invalidate drops key from the cache
func (c *Cache[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}
