package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"tileglobe/internal/projection"
)

var ErrDebugFailure = errors.New("debug provider: configured failure")

// DebugProvider draws a labelled placeholder for every tile. It needs no
// network and is used offline and in tests.
type DebugProvider struct {
	Latency time.Duration

	mu   sync.Mutex
	fail map[projection.Address]bool
}

func NewDebugProvider(latency time.Duration) *DebugProvider {
	return &DebugProvider{
		Latency: latency,
		fail:    make(map[projection.Address]bool),
	}
}

// FailOn makes every fetch of addr return ErrDebugFailure.
func (p *DebugProvider) FailOn(addr projection.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[addr] = true
}

func (p *DebugProvider) Fetch(ctx context.Context, addr projection.Address) (image.Image, error) {
	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	fail := p.fail[addr]
	p.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: %s", ErrDebugFailure, addr)
	}
	return Render(addr), nil
}

// Encode renders addr as PNG bytes.
func (p *DebugProvider) Encode(ctx context.Context, addr projection.Address) ([]byte, error) {
	img, err := p.Fetch(ctx, addr)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode debug tile: %w", err)
	}
	return buf.Bytes(), nil
}

// Render draws the placeholder tile: a zoom-tinted background, a one pixel
// border and the z/x/y label.
func Render(addr projection.Address) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))

	shade := uint8(255 - (addr.Zoom*12)%200)
	bg := color.RGBA{R: 200, G: 220, B: shade, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	border := color.RGBA{R: 100, G: 100, B: 100, A: 255}
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, TileSize, 1),
		image.Rect(0, TileSize-1, TileSize, TileSize),
		image.Rect(0, 0, 1, TileSize),
		image.Rect(TileSize-1, 0, TileSize, TileSize),
	} {
		draw.Draw(img, r, &image.Uniform{C: border}, image.Point{}, draw.Src)
	}

	label := addr.String()
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	width := d.MeasureString(label).Round()
	height := face.Metrics().Height.Round()
	d.Dot = fixed.Point26_6{
		X: fixed.I((TileSize - width) / 2),
		Y: fixed.I(TileSize/2 + height/2),
	}
	d.DrawString(label)
	return img
}
