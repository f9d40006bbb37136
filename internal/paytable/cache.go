package paytable

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds validated tables per tenant. Entries are only written after
// validation, and Invalidate must be called on every administrative update.
type Cache interface {
	Get(ctx context.Context, tenantID string) (*Table, bool)
	Set(ctx context.Context, tenantID string, t *Table)
	Invalidate(ctx context.Context, tenantID string)
}

type memoryEntry struct {
	table     *Table
	expiresAt time.Time
}

// MemoryCache is the default in-process cache.
type MemoryCache struct {
	mu     sync.RWMutex
	tables map[string]memoryEntry
	ttl    time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		tables: make(map[string]memoryEntry),
		ttl:    ttl,
	}
}

func (c *MemoryCache) Get(_ context.Context, tenantID string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[tenantID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.table, true
}

func (c *MemoryCache) Set(_ context.Context, tenantID string, t *Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tenantID] = memoryEntry{table: t, expiresAt: time.Now().Add(c.ttl)}
}

func (c *MemoryCache) Invalidate(_ context.Context, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, tenantID)
}

// RedisCache shares validated tables across instances. Values are JSON with a
// TTL; a cache miss or decode failure falls through to the repository.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(tenantID string) string {
	return fmt.Sprintf("paytable:%s", tenantID)
}

func (c *RedisCache) Get(ctx context.Context, tenantID string) (*Table, bool) {
	data, err := c.client.Get(ctx, c.key(tenantID)).Result()
	if err != nil {
		return nil, false
	}
	var t Table
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, false
	}
	if len(t.Entries) == 0 || t.TotalWeight <= 0 {
		return nil, false
	}
	return &t, true
}

func (c *RedisCache) Set(ctx context.Context, tenantID string, t *Table) {
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(tenantID), data, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID string) {
	c.client.Del(ctx, c.key(tenantID))
}
