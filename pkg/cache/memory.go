package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time // zero means no expiry
}

func (m memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Store in process memory. When full, the oldest written key is evicted.
type MemoryCache struct {
	mutex   sync.Mutex
	data    map[string]memoryItem
	order   []string
	maxSize int
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{
		data:    make(map[string]memoryItem),
		maxSize: cfg.MaxSize,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.data[key]; !exists {
		if mc.maxSize > 0 && len(mc.data) >= mc.maxSize {
			mc.evictOldest()
		}
		mc.order = append(mc.order, key)
	}

	item := memoryItem{value: append([]byte(nil), value...)}
	if expiration > 0 {
		item.expireAt = time.Now().Add(expiration)
	}
	mc.data[key] = item
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, exists := mc.data[key]
	if !exists {
		return nil, ErrCacheMiss
	}
	if item.expired(time.Now()) {
		mc.remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		mc.remove(key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := time.Now()
	for _, key := range keys {
		if item, ok := mc.data[key]; ok && !item.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Close() error { return nil }

// Len returns the number of stored keys, including expired ones not yet collected.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return len(mc.data)
}

func (mc *MemoryCache) evictOldest() {
	if len(mc.order) == 0 {
		return
	}
	mc.remove(mc.order[0])
}

func (mc *MemoryCache) remove(key string) {
	if _, ok := mc.data[key]; !ok {
		return
	}
	delete(mc.data, key)
	for i, k := range mc.order {
		if k == key {
			mc.order = append(mc.order[:i], mc.order[i+1:]...)
			break
		}
	}
}

var _ Store = (*MemoryCache)(nil)
