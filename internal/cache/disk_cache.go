package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"github.com/sashko-guz/objstore/internal/logger"
)

// formatBytes converts bytes to human-readable format
func formatBytes(bytes int64) string {
	if bytes == 0 {
		return "0"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	unitIndex := 0
	for size >= 1024 && unitIndex < len(units)-1 {
		size /= 1024
		unitIndex++
	}
	return fmt.Sprintf("%.2f%s", size, units[unitIndex])
}

// DiskCache stores payloads as files named {blake3(key)}_{expiresUnix}.cache
// under a two-level directory fan-out.
type DiskCache struct {
	basePath string
	maxSize  int64 // bytes, 0 = unlimited
	ttl      time.Duration
	log      *logger.Logger

	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

// DiskCacheConfig configures a DiskCache. MaxSizeBytes 0 means unlimited.
type DiskCacheConfig struct {
	BasePath       string
	TTL            time.Duration
	MaxSizeBytes   int64
	ClearOnStartup bool
	// CleanupInterval is the base sweep interval; 0 means 30s.
	// A negative value disables the background sweep.
	CleanupInterval time.Duration
	Logger          *logger.Logger
}

type cleanupStats struct {
	totalFiles   int
	totalSize    int64
	keptCount    int
	keptSize     int64
	deletedCount int
	deletedSize  int64
	errorCount   int
}

type cacheFile struct {
	path      string
	size      int64
	expiresAt time.Time
}

// NewDiskCache creates the cache directory, sweeps or clears existing entries
// and starts the background cleanup.
func NewDiskCache(cfg DiskCacheConfig) (*DiskCache, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("disk cache base path is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("disk cache TTL must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath: absPath,
		maxSize:  cfg.MaxSizeBytes,
		ttl:      cfg.TTL,
		log:      cfg.Logger,
		stop:     make(chan struct{}),
	}

	if cfg.ClearOnStartup {
		dc.log.Infof("[DiskCache] Clearing all cache files in %s (clearOnStartup=true)", absPath)
		if err := dc.Clear(); err != nil {
			dc.log.Warnf("[DiskCache] Error during startup cache clear: %v", err)
		}
	} else {
		dc.performCleanup()
	}

	interval := cfg.CleanupInterval
	if interval == 0 {
		interval = 30 * time.Second
	}
	if interval > 0 {
		go dc.cleanupExpired(interval)
	}

	dc.log.Infof("[DiskCache] Initialized: BasePath=%s, TTL=%v, MaxSize=%v", absPath, cfg.TTL, formatBytes(cfg.MaxSizeBytes))
	return dc, nil
}

// Get returns the payload for key, or ErrCacheNotFound when it is missing or expired.
func (dc *DiskCache) Get(key string) ([]byte, error) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	hash := dc.getHash(key)
	filePath, expiresAt, err := dc.findCacheFile(dc.getDirPath(hash), hash)
	if err != nil {
		return nil, ErrCacheNotFound
	}

	if time.Now().After(expiresAt) {
		go func() {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				dc.log.Warnf("[DiskCache] Error deleting expired cache file %s: %v", filePath, err)
			}
		}()
		return nil, ErrCacheNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}

// Set writes data for key with the cache TTL, replacing any existing entry.
func (dc *DiskCache) Set(key string, data []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	hash := dc.getHash(key)
	dir := dc.getDirPath(hash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory structure: %w", err)
	}

	// Older entries carry a different expiry in their name.
	dc.removeEntries(dir, hash)

	filePath := dc.getFilePathWithExpiration(hash, time.Now().Add(dc.ttl))
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Delete removes every file stored for key.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	hash := dc.getHash(key)
	return dc.removeEntries(dc.getDirPath(hash), hash)
}

// Clear removes all entries and recreates the base directory.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if err := os.RemoveAll(dc.basePath); err != nil {
		return fmt.Errorf("failed to remove cache directory: %w", err)
	}
	if err := os.MkdirAll(dc.basePath, 0755); err != nil {
		return fmt.Errorf("failed to recreate cache directory: %w", err)
	}
	return nil
}

// Close stops the background sweep. It is safe to call more than once.
func (dc *DiskCache) Close() {
	dc.stopOnce.Do(func() { close(dc.stop) })
}

// cleanupExpired backs off by 10s per idle sweep up to 10m and resets to
// the base interval as soon as a sweep deletes something.
func (dc *DiskCache) cleanupExpired(baseInterval time.Duration) {
	const increaseInterval = 10 * time.Second
	const maxInterval = 10 * time.Minute

	interval := baseInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-dc.stop:
			return
		case <-timer.C:
		}

		stats := dc.performCleanup()
		if stats.deletedCount == 0 {
			interval = min(interval+increaseInterval, maxInterval)
		} else {
			interval = baseInterval
		}
		timer.Reset(interval)
		dc.log.Debugf("[DiskCache] %s - Next cleanup in %v (deleted: %d/%d, kept: %d)", dc.basePath, interval, stats.deletedCount, stats.totalFiles, stats.keptCount)
	}
}

// performCleanup drops expired files, then evicts the soonest-expiring ones
// while the cache is over maxSize.
func (dc *DiskCache) performCleanup() cleanupStats {
	now := time.Now()
	stats := cleanupStats{}
	var validFiles []cacheFile

	err := filepath.Walk(dc.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".cache" {
			return nil
		}

		stats.totalFiles++
		fileSize := info.Size()
		stats.totalSize += fileSize

		expiresAt, err := parseExpirationFromFilename(filepath.Base(path))
		if err != nil || now.After(expiresAt) {
			dc.mu.Lock()
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				dc.log.Warnf("[DiskCache] Error deleting cache file %s: %v", path, err)
				stats.errorCount++
			} else {
				stats.deletedCount++
				stats.deletedSize += fileSize
			}
			dc.mu.Unlock()
			dc.cleanupEmptyDirs(filepath.Dir(path))
			return nil
		}

		stats.keptCount++
		stats.keptSize += fileSize
		validFiles = append(validFiles, cacheFile{path: path, size: fileSize, expiresAt: expiresAt})
		return nil
	})
	if err != nil {
		dc.log.Warnf("[DiskCache] Error during cleanup walk: %v", err)
	}

	if dc.maxSize > 0 && stats.keptSize > dc.maxSize {
		dc.log.Infof("[DiskCache] Cache size exceeded: %v > %v, evicting oldest files",
			formatBytes(stats.keptSize), formatBytes(dc.maxSize))

		sort.Slice(validFiles, func(i, j int) bool {
			return validFiles[i].expiresAt.Before(validFiles[j].expiresAt)
		})

		for _, file := range validFiles {
			if stats.keptSize <= dc.maxSize {
				break
			}

			dc.mu.Lock()
			err := os.Remove(file.path)
			dc.mu.Unlock()
			if err != nil && !os.IsNotExist(err) {
				stats.errorCount++
				continue
			}

			stats.deletedCount++
			stats.deletedSize += file.size
			stats.keptCount--
			stats.keptSize -= file.size
			dc.cleanupEmptyDirs(filepath.Dir(file.path))
		}
	}

	return stats
}

// CacheStats returns the number of entries and their total size in bytes.
func (dc *DiskCache) CacheStats() (count int, totalSize int64, err error) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	err = filepath.Walk(dc.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cache" {
			count++
			totalSize += info.Size()
		}
		return nil
	})
	return count, totalSize, err
}

// getHash returns the hex BLAKE3 digest of key.
func (dc *DiskCache) getHash(key string) string {
	hash := blake3.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// getDirPath uses nginx-style levels=2:2 to limit files per directory.
func (dc *DiskCache) getDirPath(hashStr string) string {
	n := len(hashStr)
	return filepath.Join(dc.basePath, hashStr[n-2:n], hashStr[n-4:n-2])
}

func (dc *DiskCache) getFilePathWithExpiration(hashStr string, expiresAt time.Time) string {
	fileName := fmt.Sprintf("%s_%d.cache", hashStr, expiresAt.Unix())
	return filepath.Join(dc.getDirPath(hashStr), fileName)
}

func (dc *DiskCache) findCacheFile(dir, hashStr string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, err
	}

	prefix := hashStr + "_"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".cache") {
			continue
		}
		expiresAt, err := parseExpirationFromFilename(name)
		if err != nil {
			continue
		}
		return filepath.Join(dir, name), expiresAt, nil
	}
	return "", time.Time{}, ErrCacheNotFound
}

// removeEntries deletes every file for hashStr in dir. Caller holds mu.
func (dc *DiskCache) removeEntries(dir, hashStr string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	prefix := hashStr + "_"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete cache file: %w", err)
		}
	}
	return nil
}

// parseExpirationFromFilename reads {hash}_{unixTimestamp}.cache
func parseExpirationFromFilename(filename string) (time.Time, error) {
	name := strings.TrimSuffix(filename, ".cache")

	lastUnderscore := strings.LastIndex(name, "_")
	if lastUnderscore == -1 {
		return time.Time{}, fmt.Errorf("invalid filename format: %s", filename)
	}

	timestamp, err := strconv.ParseInt(name[lastUnderscore+1:], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp in filename: %w", err)
	}
	return time.Unix(timestamp, 0), nil
}

// cleanupEmptyDirs removes empty directories up to the base path
func (dc *DiskCache) cleanupEmptyDirs(dir string) {
	if dir == dc.basePath || !strings.HasPrefix(dir, dc.basePath) {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}

	if err := os.Remove(dir); err == nil {
		dc.cleanupEmptyDirs(filepath.Dir(dir))
	}
}
