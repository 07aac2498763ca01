package cache

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// BoltFileName is the database name used inside the cache directory.
const BoltFileName = "tiles.db"

// NewCache creates a cache instance based on the cache type
func NewCache(cacheType, cacheFileDir string, cacheMemoryTiles int, log *zap.Logger) (Cache, error) {
	switch cacheType {
	case "memory":
		log.Info("Using memory cache", zap.Int("max_tiles", cacheMemoryTiles))
		return NewMemoryCache(cacheMemoryTiles)
	case "file":
		log.Info("Using file cache", zap.String("cache_dir", cacheFileDir))
		return NewFileCache(cacheFileDir)
	case "bolt":
		path := filepath.Join(cacheFileDir, BoltFileName)
		log.Info("Using bolt cache", zap.String("path", path))
		return NewBoltCache(path, log)
	case "disabled":
		log.Info("Cache disabled")
		return NewNoopCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, file, bolt, disabled)", cacheType)
	}
}
