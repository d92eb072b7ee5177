package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

type cacheItem struct {
	value     string
	expiresAt time.Time
}

// Cache is a process-local TTL cache used when no redis url is configured.
type Cache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	nowFn func() time.Time
}

func NewCache() *Cache {
	return &Cache{items: map[string]cacheItem{}, nowFn: time.Now}
}

func (c *Cache) Get(_ context.Context, k string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[k]
	if !ok {
		return "", nil
	}
	if !item.expiresAt.IsZero() && !item.expiresAt.After(c.nowFn()) {
		delete(c.items, k)
		return "", nil
	}
	return item.value, nil
}

func (c *Cache) Set(_ context.Context, k string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := cacheItem{value: value}
	if ttl > 0 {
		item.expiresAt = c.nowFn().Add(ttl)
	}
	c.items[k] = item
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

var _ ports.Cache = (*Cache)(nil)
