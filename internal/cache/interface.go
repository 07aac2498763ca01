package cache

import (
	"fmt"

	"tileglobe/internal/projection"
)

// TileKey identifies one proxied tile image.
type TileKey struct {
	Source string
	Z      uint32
	X      uint32
	Y      uint32
	Format string
}

func NewTileKey(source string, addr projection.Address, format string) TileKey {
	return TileKey{Source: source, Z: addr.Zoom, X: addr.X, Y: addr.Y, Format: format}
}

func (k TileKey) Address() projection.Address {
	return projection.Address{Zoom: k.Z, X: k.X, Y: k.Y}
}

// String is the key inside a source: z/x/y.format
func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d.%s", k.Z, k.X, k.Y, k.Format)
}

type Cache interface {
	Get(key TileKey) ([]byte, bool)
	Set(key TileKey, value []byte)
	Has(key TileKey) bool // Check if tile exists without reading it (lightweight check)
	Clear()
}
