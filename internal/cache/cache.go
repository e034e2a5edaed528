package cache

import (
	"errors"
	"time"
)

var ErrCacheNotFound = errors.New("cache: entry not found")

// MemoryLayer is an in-process byte cache. Set may drop entries under
// pressure, so a false return is not an error.
type MemoryLayer interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte, ttl time.Duration) bool
	Delete(key string)
	Clear()
	Close()
}

const (
	EngineRistretto = "ristretto"
	EngineLRU       = "lru"
)
