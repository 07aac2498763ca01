package tile_cache

import (
	"context"
	"image"

	"tileglobe/internal/projection"
)

// Provider supplies tile imagery. Fetch may block; the cache only calls it
// from its own worker goroutines.
type Provider interface {
	Fetch(ctx context.Context, addr projection.Address) (image.Image, error)
}

type ProviderFunc func(ctx context.Context, addr projection.Address) (image.Image, error)

func (f ProviderFunc) Fetch(ctx context.Context, addr projection.Address) (image.Image, error) {
	return f(ctx, addr)
}
