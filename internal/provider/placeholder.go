package provider

import (
	"context"
	"image"

	"tileglobe/internal/projection"
)

var blank = image.NewRGBA(image.Rect(0, 0, 1, 1))

// Placeholder answers every fetch at once with a transparent pixel. It is used
// when only the tile selection matters, not the pixels.
type Placeholder struct{}

func (Placeholder) Fetch(ctx context.Context, addr projection.Address) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return blank, nil
}
