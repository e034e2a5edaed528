package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashko-guz/objstore/internal/cache"
	"github.com/sashko-guz/objstore/internal/logger"
	"github.com/sashko-guz/objstore/internal/storage/drivers"
)

var ErrStorageNotFound = errors.New("storage: no storage with that name")

const defaultCacheTTL = 5 * time.Minute

// NewClient creates the configured driver and wraps it with cache layers when enabled.
func NewClient(ctx context.Context, cfg StorageItem, log *logger.Logger) (Client, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := createBaseClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logParts := []string{fmt.Sprintf("driver: %s", cfg.Driver)}

	if !cfg.Cache.memoryEnabled() && !cfg.Cache.diskEnabled() {
		log.Infof("[Storage:%s] Initialized (%s)", cfg.Name, strings.Join(logParts, ", "))
		return base, nil
	}

	cached, err := wrapWithCache(base, cfg, log)
	if err != nil {
		return nil, err
	}

	var cacheInfo []string
	if cached.memory != nil {
		cacheInfo = append(cacheInfo, "memory")
	}
	if cached.disk != nil {
		cacheInfo = append(cacheInfo, "disk")
	}
	logParts = append(logParts, fmt.Sprintf("cache: %s", strings.Join(cacheInfo, ", ")))

	log.Infof("[Storage:%s] Initialized (%s)", cfg.Name, strings.Join(logParts, ", "))
	return cached, nil
}

func createBaseClient(ctx context.Context, cfg StorageItem) (Client, error) {
	switch cfg.Driver {
	case DriverS3:
		client, err := drivers.NewS3Client(ctx, drivers.S3Options{
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			BaseURL:   cfg.BaseURL,
			HTTP:      cfg.S3HTTPConfig,
		})
		if err != nil {
			return nil, fmt.Errorf("storage '%s': failed to initialize S3: %w", cfg.Name, err)
		}
		return client, nil

	case DriverLocal:
		client, err := drivers.NewLocalClient(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("storage '%s': failed to initialize local storage: %w", cfg.Name, err)
		}
		if cfg.Bucket != "" {
			if err := client.CreateBucket(cfg.Bucket); err != nil {
				return nil, fmt.Errorf("storage '%s': failed to create bucket: %w", cfg.Name, err)
			}
		}
		return client, nil

	default:
		return nil, fmt.Errorf("storage '%s': unknown driver '%s'", cfg.Name, cfg.Driver)
	}
}

func wrapWithCache(base Client, cfg StorageItem, log *logger.Logger) (*CachedClient, error) {
	cs := &CachedClient{
		underlying: base,
		ttl:        defaultCacheTTL,
		name:       cfg.Name,
		log:        log,
	}

	if cfg.Cache.memoryEnabled() {
		opts := cfg.Cache.Memory
		if opts.TTLSeconds > 0 {
			cs.ttl = time.Duration(opts.TTLSeconds) * time.Second
		}

		memory, err := newMemoryLayer(cfg.Name, opts, cs.ttl, log)
		if err != nil {
			return nil, fmt.Errorf("storage '%s': %w", cfg.Name, err)
		}
		cs.memory = memory
	}

	if cfg.Cache.diskEnabled() {
		opts := cfg.Cache.Disk
		ttl := defaultCacheTTL
		if opts.TTLSeconds > 0 {
			ttl = time.Duration(opts.TTLSeconds) * time.Second
		}
		clearOnStartup := opts.ClearOnStartup != nil && *opts.ClearOnStartup

		disk, err := cache.NewDiskCache(cache.DiskCacheConfig{
			BasePath:       opts.Dir,
			TTL:            ttl,
			MaxSizeBytes:   int64(opts.MaxSizeMB) * 1024 * 1024,
			ClearOnStartup: clearOnStartup,
			Logger:         log,
		})
		if err != nil {
			if cs.memory != nil {
				cs.memory.Close()
			}
			return nil, fmt.Errorf("storage '%s': failed to create disk cache: %w", cfg.Name, err)
		}
		cs.disk = disk
	}

	return cs, nil
}

func newMemoryLayer(name string, opts *MemoryCacheOptions, ttl time.Duration, log *logger.Logger) (cache.MemoryLayer, error) {
	switch opts.Engine {
	case cache.EngineLRU:
		maxItems := opts.MaxItems
		if maxItems <= 0 {
			maxItems = 1000
		}
		return cache.NewLRUCache(cache.LRUCacheConfig{
			Name:     name,
			MaxItems: maxItems,
			TTL:      ttl,
			Logger:   log,
		})

	default:
		maxSizeMB := opts.MaxSizeMB
		if maxSizeMB <= 0 {
			maxSizeMB = 64
		}
		return cache.NewMemoryCache(cache.MemoryCacheConfig{
			Name:     name,
			MaxSize:  int64(maxSizeMB) * 1024 * 1024,
			MaxItems: int64(opts.MaxItems),
			Logger:   log,
		})
	}
}

// NewServiceFromConfig builds the Service for the named storage (first one when name is empty).
func NewServiceFromConfig(ctx context.Context, cfg *StorageConfig, name string, log *logger.Logger) (*Service, StorageItem, error) {
	item, err := cfg.Find(name)
	if err != nil {
		return nil, StorageItem{}, err
	}

	client, err := NewClient(ctx, item, log)
	if err != nil {
		return nil, StorageItem{}, err
	}

	svc, err := NewService(client, WithLogger(log))
	if err != nil {
		return nil, StorageItem{}, err
	}
	if closer, ok := client.(io.Closer); ok {
		svc.closer = closer
	}
	return svc, item, nil
}
