package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/sashko-guz/objstore/internal/logger"
)

// MemoryCache is a cost-bounded in-memory cache; cost is the payload size in bytes.
type MemoryCache struct {
	cache *ristretto.Cache
	name  string
	log   *logger.Logger
}

// MemoryCacheConfig sizes a MemoryCache.
type MemoryCacheConfig struct {
	Name        string // Cache name for logging
	MaxSize     int64  // Max memory in bytes
	MaxItems    int64  // Max number of items (optional)
	BufferItems int64  // Number of keys to track frequency (10x MaxItems recommended)
	Logger      *logger.Logger
}

// NewMemoryCache builds a ristretto-backed cache; MaxSize is required.
func NewMemoryCache(cfg MemoryCacheConfig) (*MemoryCache, error) {
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("MaxSize must be specified for memory cache")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	if cfg.MaxItems == 0 {
		// Estimate: assume average item is ~100KB
		cfg.MaxItems = cfg.MaxSize / (100 * 1024)
		if cfg.MaxItems < 100 {
			cfg.MaxItems = 100
		}
	}

	if cfg.BufferItems == 0 {
		cfg.BufferItems = cfg.MaxItems * 10
		if cfg.BufferItems < 1000 {
			cfg.BufferItems = 1000
		}
	}

	log := cfg.Logger
	name := cfg.Name
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.BufferItems,
		MaxCost:     cfg.MaxSize,
		BufferItems: 64,
		Metrics:     true,
		OnEvict: func(item *ristretto.Item) {
			log.Debugf("[MemoryCache:%s] Evicted item (cost: %d bytes)", name, item.Cost)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	log.Infof("[MemoryCache:%s] Initialized: MaxSize=%dMB, MaxItems=%d",
		cfg.Name, cfg.MaxSize/(1024*1024), cfg.MaxItems)

	return &MemoryCache{
		cache: cache,
		name:  cfg.Name,
		log:   log,
	}, nil
}

// Get returns the payload stored under key and whether it was found.
func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	value, found := mc.cache.Get(key)
	if !found {
		return nil, false
	}

	data, ok := value.([]byte)
	if !ok {
		mc.log.Warnf("[MemoryCache:%s] Invalid data type for key: %s", mc.name, key)
		return nil, false
	}
	return data, true
}

// Set stores data under key for ttl. It reports false when ristretto drops the write.
// Writes are asynchronous; call Wait to make them visible to Get.
func (mc *MemoryCache) Set(key string, data []byte, ttl time.Duration) bool {
	ok := mc.cache.SetWithTTL(key, data, int64(len(data)), ttl)
	if !ok {
		mc.log.Debugf("[MemoryCache:%s] Set rejected for key: %s", mc.name, key)
	}
	return ok
}

// Delete drops key.
func (mc *MemoryCache) Delete(key string) {
	mc.cache.Del(key)
}

// Clear drops every entry.
func (mc *MemoryCache) Clear() {
	mc.cache.Clear()
	mc.log.Infof("[MemoryCache:%s] Cache cleared", mc.name)
}

// Wait blocks until buffered writes are applied.
func (mc *MemoryCache) Wait() {
	mc.cache.Wait()
}

// GetStats reports hit/miss and eviction counters.
func (mc *MemoryCache) GetStats() map[string]any {
	metrics := mc.cache.Metrics

	hits := metrics.Hits()
	misses := metrics.Misses()
	total := hits + misses

	var hitRatio float64
	if total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return map[string]any{
		"name":         mc.name,
		"engine":       EngineRistretto,
		"hits":         hits,
		"misses":       misses,
		"hit_ratio":    hitRatio,
		"keys_added":   metrics.KeysAdded(),
		"keys_evicted": metrics.KeysEvicted(),
		"cost_added":   metrics.CostAdded(),
		"cost_evicted": metrics.CostEvicted(),
	}
}

// Close flushes pending writes and releases the cache.
func (mc *MemoryCache) Close() {
	mc.cache.Wait()
	mc.cache.Close()
	mc.log.Debugf("[MemoryCache:%s] Cache closed", mc.name)
}

var _ MemoryLayer = (*MemoryCache)(nil)
