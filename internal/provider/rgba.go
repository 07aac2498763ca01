package provider

import (
	"image"

	"golang.org/x/image/draw"
)

// TileSize is the native edge length of a tile image in pixels.
const TileSize = 256

// ToRGBA converts img to a size×size RGBA image with a zero origin, the layout
// a renderer uploads directly. Images of a different size are rescaled.
func ToRGBA(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && b.Dx() == size && b.Dy() == size {
		return rgba
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if b.Dx() == size && b.Dy() == size {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
