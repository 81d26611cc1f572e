package utils

import (
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTLCache is a bounded LRU whose entries also expire after a fixed TTL.
type TTLCache[V any] struct {
	lru *expirable.LRU[string, V]
}

func NewTTLCache[V any](size int, ttl time.Duration) (*TTLCache[V], error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	return &TTLCache[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}, nil
}

func (c *TTLCache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Get returns the cached value unless it is missing or expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

func (c *TTLCache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *TTLCache[V]) Purge() {
	c.lru.Purge()
}
