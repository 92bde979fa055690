package exchange

import (
	"sync"
	"time"
)

type cacheEntry[T any] struct {
	value    T
	storedAt time.Time
}

// Cache : key 별 TTL 캐시. 용량 제한이나 eviction 없이 갱신 시 덮어쓰기만 한다.
type Cache[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]cacheEntry[T]
}

func NewCache[T any](ttl time.Duration, clock func() time.Time) *Cache[T] {
	if clock == nil {
		clock = time.Now
	}
	return &Cache[T]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry[T]),
	}
}

// Fresh : TTL 안쪽 값만 반환
func (c *Cache[T]) Fresh(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.Expired(entry.storedAt) {
		var zero T
		return zero, false
	}
	return entry.value, true
}

// Stale : 나이와 상관없이 마지막으로 저장된 값
func (c *Cache[T]) Stale(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return entry.value, ok
}

// Entry : Stale 과 같지만 저장 시각도 함께
func (c *Cache[T]) Entry(key string) (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return entry.value, entry.storedAt, ok
}

// Expired : storedAt 에 저장된 값이 TTL 을 넘겼는지
func (c *Cache[T]) Expired(storedAt time.Time) bool {
	return c.clock().Sub(storedAt) >= c.ttl
}

func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[T]{value: value, storedAt: c.clock()}
}

func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry[T])
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
