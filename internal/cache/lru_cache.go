package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sashko-guz/objstore/internal/logger"
)

// LRUCache is an item-bounded in-memory cache with a single TTL for all entries.
// Unlike MemoryCache, writes are synchronous and eviction is strictly least-recently-used.
type LRUCache struct {
	cache *expirable.LRU[string, []byte]
	name  string
	log   *logger.Logger
}

type LRUCacheConfig struct {
	Name     string
	MaxItems int
	TTL      time.Duration // 0 = no expiry
	Logger   *logger.Logger
}

// NewLRUCache builds an expirable LRU; MaxItems is required.
func NewLRUCache(cfg LRUCacheConfig) (*LRUCache, error) {
	if cfg.MaxItems <= 0 {
		return nil, fmt.Errorf("MaxItems must be specified for lru cache")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	log := cfg.Logger
	name := cfg.Name
	onEvict := func(key string, _ []byte) {
		log.Debugf("[LRUCache:%s] Evicted key: %s", name, key)
	}

	log.Infof("[LRUCache:%s] Initialized: MaxItems=%d, TTL=%v", cfg.Name, cfg.MaxItems, cfg.TTL)
	return &LRUCache{
		cache: expirable.NewLRU[string, []byte](cfg.MaxItems, onEvict, cfg.TTL),
		name:  cfg.Name,
		log:   log,
	}, nil
}

// Get returns the payload under key if present and not expired.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	return c.cache.Get(key)
}

// Set ignores ttl; the cache-wide TTL applies.
func (c *LRUCache) Set(key string, data []byte, _ time.Duration) bool {
	c.cache.Add(key, data)
	return true
}

// Delete drops key.
func (c *LRUCache) Delete(key string) {
	c.cache.Remove(key)
}

// Clear drops every entry.
func (c *LRUCache) Clear() {
	c.cache.Purge()
	c.log.Infof("[LRUCache:%s] Cache cleared", c.name)
}

// Len returns the number of entries, expired ones included until they are purged.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

// Close is a no-op. expirable.LRU has no way to stop its purge goroutine.
func (c *LRUCache) Close() {}

var _ MemoryLayer = (*LRUCache)(nil)
