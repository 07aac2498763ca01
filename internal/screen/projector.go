package screen

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"tileglobe/internal/projection"
)

// ClipPoint is a position after the camera transform, before the
// perspective divide.
type ClipPoint struct {
	X, Y, Z, W float64
}

// Visible reports whether the point is in front of the camera and past the
// near plane. Non-finite coordinates are never visible.
func (c ClipPoint) Visible() bool {
	if !finite(c.X) || !finite(c.Y) || !finite(c.Z) || !finite(c.W) {
		return false
	}
	return c.W > 0 && c.Z >= 0
}

// Projector maps world positions to pixels through a combined
// projection × view matrix.
type Projector struct {
	M        mgl64.Mat4
	Viewport r2.Rect
}

func NewProjector(m mgl64.Mat4, viewport r2.Rect) Projector {
	return Projector{M: m, Viewport: viewport}
}

func (p Projector) Project(v r3.Vector) ClipPoint {
	c := p.M.Mul4x1(mgl64.Vec4{v.X, v.Y, v.Z, 1})
	return ClipPoint{X: c.X(), Y: c.Y(), Z: c.Z(), W: c.W()}
}

// ToScreen performs the perspective divide and maps normalised device
// coordinates to viewport pixels with y growing downwards.
func (p Projector) ToScreen(c ClipPoint) (r2.Point, bool) {
	if c.W == 0 {
		return r2.Point{}, false
	}
	nx, ny := c.X/c.W, c.Y/c.W
	if !finite(nx) || !finite(ny) {
		return r2.Point{}, false
	}
	lo, size := p.Viewport.Lo(), p.Viewport.Size()
	return r2.Point{
		X: lo.X + (nx*0.5+0.5)*size.X,
		Y: lo.Y + (1-(ny*0.5+0.5))*size.Y,
	}, true
}

// Footprint is the on-screen extent of a set of world positions.
type Footprint struct {
	// Bounds is the screen bounding box clipped to the viewport. Empty when
	// culled.
	Bounds r2.Rect
	// Culled is set when any point is behind the camera, before the near
	// plane, or produced non-finite coordinates.
	Culled bool
	// Behind counts points with w <= 0 or non-finite coordinates.
	Behind int
	Points int
}

// AllBehind reports whether every point was behind the camera.
func (f Footprint) AllBehind() bool {
	return f.Points > 0 && f.Behind == f.Points
}

func (f Footprint) Width() float64  { return Width(f.Bounds) }
func (f Footprint) Height() float64 { return Height(f.Bounds) }

func (p Projector) Footprint(points []r3.Vector) Footprint {
	fp := Footprint{Points: len(points), Bounds: r2.EmptyRect()}
	screenPts := make([]r2.Point, 0, len(points))
	for _, v := range points {
		c := p.Project(v)
		if !c.Visible() {
			fp.Culled = true
			if !(c.W > 0) || !finite(c.W) {
				fp.Behind++
			}
			continue
		}
		sp, ok := p.ToScreen(c)
		if !ok {
			fp.Culled = true
			fp.Behind++
			continue
		}
		screenPts = append(screenPts, sp)
	}
	if fp.Culled {
		return fp
	}
	fp.Bounds = Intersect(BoundsOf(screenPts), p.Viewport)
	return fp
}

// Pick casts a ray through pixel (px, py) and returns the geographic position
// where it first meets the ellipsoid.
func (p Projector) Pick(px, py float64, e projection.Ellipsoid) (projection.LonLat, bool) {
	if p.M.Det() == 0 {
		return projection.LonLat{}, false
	}
	inv := p.M.Inv()

	lo, size := p.Viewport.Lo(), p.Viewport.Size()
	if size.X <= 0 || size.Y <= 0 {
		return projection.LonLat{}, false
	}
	nx := (px-lo.X)/size.X*2 - 1
	ny := 1 - (py-lo.Y)/size.Y*2

	near, ok := unproject(inv, nx, ny, -1)
	if !ok {
		return projection.LonLat{}, false
	}
	far, ok := unproject(inv, nx, ny, 1)
	if !ok {
		return projection.LonLat{}, false
	}

	dir := far.Sub(near).Normalize()
	t, hit := e.Intersect(near, dir)
	if !hit {
		return projection.LonLat{}, false
	}
	return e.PosToLonLat(near.Add(dir.Mul(t))), true
}

func unproject(inv mgl64.Mat4, nx, ny, nz float64) (r3.Vector, bool) {
	v := inv.Mul4x1(mgl64.Vec4{nx, ny, nz, 1})
	if v.W() == 0 {
		return r3.Vector{}, false
	}
	out := r3.Vector{X: v.X() / v.W(), Y: v.Y() / v.W(), Z: v.Z() / v.W()}
	if !finite(out.X) || !finite(out.Y) || !finite(out.Z) {
		return r3.Vector{}, false
	}
	return out, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
