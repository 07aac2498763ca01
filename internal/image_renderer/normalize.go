package image_renderer

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/cshum/vipsgen/vips"
)

// TileSize is the edge length of every served tile.
const TileSize = 256

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Normalizer turns origin bytes into the served PNG.
type Normalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// Passthrough serves origin bytes unchanged.
type Passthrough struct{}

func (Passthrough) Normalize(data []byte) ([]byte, error) {
	return data, nil
}

// VipsNormalizer re-encodes origin tiles as 256×256 PNGs. vips must be
// started by the caller.
type VipsNormalizer struct{}

func (VipsNormalizer) Normalize(data []byte) ([]byte, error) {
	image, err := loadBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer image.Close()

	w, h := image.Width(), image.Height()
	if w == TileSize && h == TileSize && bytes.HasPrefix(data, pngSignature) {
		return data, nil
	}

	// Scale the longer edge to the tile size.
	if max(w, h) != TileSize {
		resizeOpts := vips.DefaultResizeOptions()
		resizeOpts.Kernel = vips.KernelLanczos3
		if err := image.Resize(float64(TileSize)/float64(max(w, h)), resizeOpts); err != nil {
			return nil, fmt.Errorf("failed to resize: %w", err)
		}
	}

	// Pad to exactly 256×256, anchored top-left.
	if image.Width() < TileSize || image.Height() < TileSize {
		embedOpts := vips.DefaultEmbedOptions()
		embedOpts.Extend = vips.ExtendBackground
		embedOpts.Background = []float64{221, 221, 221} // #ddd
		if image.Bands() == 4 {
			embedOpts.Background = []float64{0, 0, 0, 0}
		}
		if err := image.Embed(0, 0, TileSize, TileSize, embedOpts); err != nil {
			return nil, fmt.Errorf("failed to pad: %w", err)
		}
	}

	tileData, err := image.PngsaveBuffer(vips.DefaultPngsaveBufferOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}
	return tileData, nil
}

func loadBuffer(data []byte) (*vips.Image, error) {
	switch contentType := http.DetectContentType(data); contentType {
	case "image/png":
		return vips.NewPngloadBuffer(data, vips.DefaultPngloadBufferOptions())
	case "image/jpeg":
		return vips.NewJpegloadBuffer(data, vips.DefaultJpegloadBufferOptions())
	case "image/webp":
		return vips.NewWebploadBuffer(data, vips.DefaultWebploadBufferOptions())
	default:
		return nil, fmt.Errorf("unsupported image format: %s", contentType)
	}
}
