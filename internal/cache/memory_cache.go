package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache keeps the most recently used tiles in memory.
type MemoryCache struct {
	tiles *lru.Cache[TileKey, []byte]
}

func NewMemoryCache(maxTiles int) (*MemoryCache, error) {
	tiles, err := lru.New[TileKey, []byte](maxTiles)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{tiles: tiles}, nil
}

// Has does not touch recency.
func (c *MemoryCache) Has(key TileKey) bool {
	return c.tiles.Contains(key)
}

func (c *MemoryCache) Get(key TileKey) ([]byte, bool) {
	return c.tiles.Get(key)
}

func (c *MemoryCache) Set(key TileKey, value []byte) {
	c.tiles.Add(key, value)
}

func (c *MemoryCache) Clear() {
	c.tiles.Purge()
}

func (c *MemoryCache) Len() int {
	return c.tiles.Len()
}
