package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sashko-guz/objstore/internal/cache"
	"github.com/sashko-guz/objstore/internal/storage/drivers"
)

type StorageDriver string

const (
	DriverS3    StorageDriver = "s3"
	DriverLocal StorageDriver = "local"
)

type StorageItem struct {
	Name   string        `json:"name"`
	Driver StorageDriver `json:"driver"`

	// Bucket used when a caller does not name one (CLI default)
	Bucket string `json:"bucket,omitempty"`

	Cache *StorageCacheConfig `json:"cache,omitempty"`

	// S3 specific fields
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	BaseURL   string `json:"base_url,omitempty"` // Custom endpoint for S3-compatible storage

	S3HTTPConfig *drivers.HTTPConfig `json:"s3_http_config,omitempty"`

	// Local specific fields
	Root string `json:"root,omitempty"`
}

// MemoryCacheOptions configures the in-memory layer.
// Engine "ristretto" (default) bounds by MaxSizeMB, "lru" bounds by MaxItems.
type MemoryCacheOptions struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	Engine     string `json:"engine,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxItems   int    `json:"max_items,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type DiskCacheOptions struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	TTLSeconds     int    `json:"ttl_seconds,omitempty"`
	MaxSizeMB      int    `json:"max_size_mb,omitempty"` // 0 = unlimited
	Dir            string `json:"dir,omitempty"`
	ClearOnStartup *bool  `json:"clear_on_startup,omitempty"`
}

type StorageCacheConfig struct {
	Memory *MemoryCacheOptions `json:"memory,omitempty"`
	Disk   *DiskCacheOptions   `json:"disk,omitempty"`
}

func (c *StorageCacheConfig) memoryEnabled() bool {
	return c != nil && c.Memory != nil && c.Memory.Enabled != nil && *c.Memory.Enabled
}

func (c *StorageCacheConfig) diskEnabled() bool {
	return c != nil && c.Disk != nil && c.Disk.Enabled != nil && *c.Disk.Enabled
}

type StorageConfig struct {
	Storages []StorageItem `json:"storages"`
}

func LoadConfig(configPath string) (*StorageConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config StorageConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *StorageConfig) Validate() error {
	if len(c.Storages) == 0 {
		return fmt.Errorf("no storages configured")
	}

	seen := make(map[string]struct{}, len(c.Storages))
	for _, item := range c.Storages {
		if item.Name == "" {
			return fmt.Errorf("storage name is required")
		}
		if _, dup := seen[item.Name]; dup {
			return fmt.Errorf("storage '%s': duplicate name", item.Name)
		}
		seen[item.Name] = struct{}{}

		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (item *StorageItem) Validate() error {
	switch item.Driver {
	case DriverS3:
		// Require credentials when using custom base_url (S3-compatible storage)
		if item.BaseURL != "" && (item.AccessKey == "" || item.SecretKey == "") {
			return fmt.Errorf("storage '%s': access_key and secret_key are required when using base_url for S3-compatible storage", item.Name)
		}
	case DriverLocal:
		if item.Root == "" {
			return fmt.Errorf("storage '%s': root is required for local driver", item.Name)
		}
	default:
		return fmt.Errorf("storage '%s': unknown driver '%s'", item.Name, item.Driver)
	}

	if item.Cache.diskEnabled() && item.Cache.Disk.Dir == "" {
		return fmt.Errorf("storage '%s': cache dir is required when disk cache is enabled", item.Name)
	}
	if item.Cache.memoryEnabled() {
		switch item.Cache.Memory.Engine {
		case "", cache.EngineRistretto, cache.EngineLRU:
		default:
			return fmt.Errorf("storage '%s': unknown memory cache engine '%s'", item.Name, item.Cache.Memory.Engine)
		}
	}
	return nil
}

// Find returns the storage with the given name, or the first one when name is empty.
func (c *StorageConfig) Find(name string) (StorageItem, error) {
	if name == "" && len(c.Storages) > 0 {
		return c.Storages[0], nil
	}
	for _, item := range c.Storages {
		if item.Name == name {
			return item, nil
		}
	}
	return StorageItem{}, fmt.Errorf("%w: %s", ErrStorageNotFound, name)
}
