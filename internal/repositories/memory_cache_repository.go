package repositories

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type memoryCacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCacheRepository - кеш в памяти процесса для CACHE_DRIVER=memory и тестов.
type MemoryCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{
		entries: make(map[string]memoryCacheEntry),
		now:     time.Now,
	}
}

func (c *MemoryCacheRepository) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.expired(entry) {
		return "", ErrCacheMiss
	}
	return entry.value, nil
}

func (c *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	entry := memoryCacheEntry{value: toCacheString(value)}
	if expiration > 0 {
		entry.expiresAt = c.now().Add(expiration)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

func (c *MemoryCacheRepository) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *MemoryCacheRepository) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if entry, ok := c.entries[key]; ok && !c.expired(entry) {
		n, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache: значение %q не является числом", key)
		}
		current = n
	}
	current++
	c.entries[key] = memoryCacheEntry{value: strconv.FormatInt(current, 10)}
	return current, nil
}

// Len - количество живых записей.
func (c *MemoryCacheRepository) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, entry := range c.entries {
		if !c.expired(entry) {
			n++
		}
	}
	return n
}

func (c *MemoryCacheRepository) expired(entry memoryCacheEntry) bool {
	return !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt)
}

func toCacheString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
