// Package cache provides caching for downloaded granules and decoded
// frames.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opera-tools/rastack/pkg/raster"
)

// Config contains cache configuration.
type Config struct {
	GranuleCacheSizeMB int
	GranuleTTL         time.Duration
	FrameCacheEntries  int
}

// Manager manages the raw granule byte cache and the decoded frame
// cache. Granule payloads age out on a TTL; decoded frames are held in
// a small LRU because a frame is an order of magnitude larger than its
// compressed source.
type Manager struct {
	granuleCache *bigcache.BigCache
	frameCache   *lru.Cache[string, *raster.Frame]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	granuleCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         cfg.GranuleTTL,
		CleanWindow:        cfg.GranuleTTL / 2,
		MaxEntriesInWindow: 1000,
		MaxEntrySize:       32 * 1024 * 1024, // 32MB per granule
		HardMaxCacheSize:   cfg.GranuleCacheSizeMB,
		Verbose:            false,
	}

	granuleCache, err := bigcache.New(context.Background(), granuleCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create granule cache: %w", err)
	}

	frameCache, err := lru.New[string, *raster.Frame](cfg.FrameCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame cache: %w", err)
	}

	return &Manager{
		granuleCache: granuleCache,
		frameCache:   frameCache,
	}, nil
}

// GetGranule retrieves raw granule bytes from cache.
func (m *Manager) GetGranule(key string) ([]byte, bool) {
	data, err := m.granuleCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetGranule stores raw granule bytes in cache.
func (m *Manager) SetGranule(key string, data []byte) error {
	return m.granuleCache.Set(key, data)
}

// GetFrame retrieves a decoded frame from cache.
func (m *Manager) GetFrame(key string) (*raster.Frame, bool) {
	return m.frameCache.Get(key)
}

// SetFrame stores a decoded frame in cache.
func (m *Manager) SetFrame(key string, f *raster.Frame) {
	m.frameCache.Add(key, f)
}

// GranuleKey generates a cache key for a granule URI.
func GranuleKey(uri string) string {
	h := sha256.Sum256([]byte(uri))
	return "granule:" + hex.EncodeToString(h[:])[:16]
}

// FrameKey generates a cache key for a decoded frame. The tag is part
// of the key because the same URI can be read under different tags.
func FrameKey(uri, tag string) string {
	h := sha256.Sum256([]byte(uri + "\x00" + tag))
	return "frame:" + hex.EncodeToString(h[:])[:16]
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"granule_cache_len": m.granuleCache.Len(),
		"granule_cache_cap": m.granuleCache.Capacity(),
		"frame_cache_len":   m.frameCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.granuleCache.Close()
}
