package tile_cache

import (
	"image"
	"sync/atomic"

	"tileglobe/internal/mesh"
	"tileglobe/internal/projection"
)

// Handle is a stable index into the cache arena.
type Handle uint32

// Record is the renderable state of one tile. The mesh is immutable once
// built; the texture becomes ready at most once.
type Record struct {
	Handle  Handle
	Address projection.Address
	Mesh    *mesh.Mesh
	Texture *Texture
}

// Texture holds decoded imagery for a record. The ready flag is the only
// synchronisation point: Image is safe to read once Ready returns true.
type Texture struct {
	ready  atomic.Bool
	failed atomic.Bool
	img    image.Image
	err    error
}

func (t *Texture) Ready() bool {
	return t.ready.Load()
}

// Failed reports a fetch error. A failed texture never becomes ready.
func (t *Texture) Failed() bool {
	return t.failed.Load()
}

// Image returns nil until the texture is ready.
func (t *Texture) Image() image.Image {
	if !t.Ready() {
		return nil
	}
	return t.img
}

func (t *Texture) Err() error {
	if !t.Failed() {
		return nil
	}
	return t.err
}

func (t *Texture) complete(img image.Image, err error) bool {
	if t.Ready() || t.Failed() {
		return false
	}
	if err != nil {
		t.err = err
		t.failed.Store(true)
		return false
	}
	t.img = img
	t.ready.Store(true)
	return true
}
