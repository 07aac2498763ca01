// Package selector chooses which tiles to draw for a camera so that on-screen
// tile size roughly matches the native tile resolution.
package selector

import (
	"cmp"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"tileglobe/internal/projection"
	"tileglobe/internal/screen"
	"tileglobe/internal/tile_cache"
)

// TileSource hands out tile records, creating them on first use.
type TileSource interface {
	GetOrCreate(addr projection.Address) *tile_cache.Record
}

type Options struct {
	// TileSize is the native pixel size of a tile image.
	TileSize float64
	// MaxZoom is a hard bound on recursion depth.
	MaxZoom uint32
	// Levels below MinZoom are refined regardless of their screen size. Zero
	// disables this; DefaultOptions uses 2. It never exceeds MaxZoom.
	MinZoom uint32
	// A tile refines when one side exceeds TileSize*MajorScale while the
	// other exceeds TileSize*MinorScale.
	MajorScale float64
	MinorScale float64
	// Fallback draws a ready parent under children that are still loading.
	Fallback bool
	// BackfaceCull skips tiles facing away from Frame.Eye.
	BackfaceCull bool
	Ellipsoid    projection.Ellipsoid
}

func DefaultOptions() Options {
	return Options{
		TileSize:   256,
		MaxZoom:    18,
		MinZoom:    2,
		MajorScale: 1,
		MinorScale: 0.25,
		Fallback:   true,
		Ellipsoid:  projection.UnitSphere,
	}
}

// Frame is the per-frame camera input.
type Frame struct {
	Matrix   mgl64.Mat4
	Viewport r2.Rect
	// Eye is the camera position, only needed for back-face culling.
	Eye *r3.Vector
}

type Stats struct {
	Visited    int    `json:"visited"`
	Refined    int    `json:"refined"`
	Culled     int    `json:"culled"`
	Backfacing int    `json:"backfacing"`
	Leaves     int    `json:"leaves"`
	Pending    int    `json:"pending"`
	MaxDepth   uint32 `json:"max_depth"`
}

type Result struct {
	// Tiles are the ready leaves in depth-first order.
	Tiles []*tile_cache.Record
	// Fallbacks are ready ancestors covering regions whose leaves are not
	// ready yet, coarsest first. Draw them before Tiles.
	Fallbacks []*tile_cache.Record
	// Satisfied is true when the whole globe is covered by ready tiles.
	Satisfied bool
	Stats     Stats
}

type Selector struct {
	source TileSource
	opts   Options
}

func New(source TileSource, opts Options) *Selector {
	def := DefaultOptions()
	if opts.TileSize <= 0 {
		opts.TileSize = def.TileSize
	}
	if opts.MaxZoom == 0 || opts.MaxZoom > projection.MaxSupportedZoom {
		opts.MaxZoom = def.MaxZoom
	}
	opts.MinZoom = min(opts.MinZoom, opts.MaxZoom)
	if opts.MajorScale <= 0 {
		opts.MajorScale = def.MajorScale
	}
	if opts.MinorScale <= 0 {
		opts.MinorScale = def.MinorScale
	}
	if opts.Ellipsoid == (projection.Ellipsoid{}) {
		opts.Ellipsoid = def.Ellipsoid
	}
	return &Selector{source: source, opts: opts}
}

func (s *Selector) Options() Options {
	return s.opts
}

// Select walks the quadtree from the root tile. Records are appended to out,
// which is reset first so callers can reuse it across frames.
func (s *Selector) Select(f Frame, out []*tile_cache.Record) Result {
	w := &walk{
		sel:  s,
		proj: screen.NewProjector(f.Matrix, f.Viewport),
		eye:  f.Eye,
		out:  out[:0],
	}
	satisfied := w.visit(projection.Root)

	slices.SortStableFunc(w.fallbacks, func(a, b *tile_cache.Record) int {
		return cmp.Compare(a.Address.Zoom, b.Address.Zoom)
	})
	return Result{
		Tiles:     w.out,
		Fallbacks: w.fallbacks,
		Satisfied: satisfied,
		Stats:     w.stats,
	}
}

type walk struct {
	sel       *Selector
	proj      screen.Projector
	eye       *r3.Vector
	out       []*tile_cache.Record
	fallbacks []*tile_cache.Record
	stats     Stats
}

// visit returns true when the tile's region is fully covered by ready tiles.
func (w *walk) visit(addr projection.Address) bool {
	opts := w.sel.opts
	w.stats.Visited++
	w.stats.MaxDepth = max(w.stats.MaxDepth, addr.Zoom)

	bounds := addr.Bounds()
	cornerLL := bounds.Corners()
	corners := w.positions(cornerLL[:])
	fp := w.proj.Footprint(corners)

	if fp.Culled {
		w.stats.Culled++
		if !fp.AllBehind() && addr.Zoom < opts.MinZoom && addr.Zoom < opts.MaxZoom {
			return w.refine(addr)
		}
		return w.leaf(addr)
	}

	if opts.BackfaceCull && w.eye != nil && addr.Zoom >= opts.MinZoom && w.backfacing(bounds, corners) {
		w.stats.Backfacing++
		return true
	}

	if shouldRefine(opts, addr.Zoom, fp.Width(), fp.Height()) {
		return w.refine(addr)
	}
	return w.leaf(addr)
}

func (w *walk) refine(addr projection.Address) bool {
	w.stats.Refined++
	all := true
	for _, child := range addr.Children() {
		if !w.visit(child) {
			all = false
		}
	}
	if all || !w.sel.opts.Fallback {
		return all
	}

	rec := w.sel.source.GetOrCreate(addr)
	if !rec.Texture.Ready() {
		return false
	}
	w.fallbacks = append(w.fallbacks, rec)
	return true
}

func (w *walk) leaf(addr projection.Address) bool {
	w.stats.Leaves++
	rec := w.sel.source.GetOrCreate(addr)
	if !rec.Texture.Ready() {
		w.stats.Pending++
		return false
	}
	w.out = append(w.out, rec)
	return true
}

// backfacing reports whether the corners, edge midpoints and centre of the
// tile all face away from the eye.
func (w *walk) backfacing(b projection.GeoBounds, corners []r3.Vector) bool {
	e := w.sel.opts.Ellipsoid
	mid := b.Center()
	samples := append([]r3.Vector{}, corners...)
	samples = append(samples, w.positions([]projection.LonLat{
		mid,
		{Lon: mid.Lon, Lat: b.North},
		{Lon: mid.Lon, Lat: b.South},
		{Lon: b.West, Lat: mid.Lat},
		{Lon: b.East, Lat: mid.Lat},
	})...)

	for _, p := range samples {
		if e.Normal(p).Dot(w.eye.Sub(p)) > 0 {
			return false
		}
	}
	return true
}

func (w *walk) positions(lls []projection.LonLat) []r3.Vector {
	out := make([]r3.Vector, len(lls))
	for i, ll := range lls {
		out[i] = w.sel.opts.Ellipsoid.LonLatToPos(ll)
	}
	return out
}

// shouldRefine is the screen-space size test. Width and height are checked in
// both orientations so a wide but short tile near the horizon still refines.
func shouldRefine(opts Options, zoom uint32, width, height float64) bool {
	if zoom >= opts.MaxZoom {
		return false
	}
	if zoom < opts.MinZoom {
		return true
	}
	major := opts.TileSize * opts.MajorScale
	minor := opts.TileSize * opts.MinorScale
	wide := width > major && height > minor
	tall := height > major && width > minor
	return wide || tall
}
