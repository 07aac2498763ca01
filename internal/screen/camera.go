package screen

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"tileglobe/internal/projection"
)

// DefaultFOV is the vertical field of view in radians.
const DefaultFOV = 45 * math.Pi / 180

// Camera orbits the globe looking at its centre from above Lon/Lat.
// Altitude is measured from the globe centre in ellipsoid units.
type Camera struct {
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Altitude float64 `json:"alt"`
	Tilt     float64 `json:"tilt"` // degrees
	FOV      float64 `json:"fov"`  // radians, DefaultFOV when zero
}

func (c Camera) fov() float64 {
	if c.FOV <= 0 {
		return DefaultFOV
	}
	return c.FOV
}

// VisibleGround approximates the width of ground in view below the camera.
func (c Camera) VisibleGround(e projection.Ellipsoid) float64 {
	return (c.Altitude - e.Equatorial) * math.Tan(c.fov()/2) * 2
}

func (c Camera) View() mgl64.Mat4 {
	m := mgl64.HomogRotate3DX(mgl64.DegToRad(-c.Tilt))
	m = m.Mul4(mgl64.Translate3D(0, 0, -c.Altitude))
	m = m.Mul4(mgl64.HomogRotate3DX(mgl64.DegToRad(c.Lat)))
	return m.Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(-c.Lon)))
}

func (c Camera) Projection(viewport r2.Rect, e projection.Ellipsoid) mgl64.Mat4 {
	size := viewport.Size()
	aspect := 1.0
	if size.Y > 0 {
		aspect = size.X / size.Y
	}
	visible := math.Max(c.VisibleGround(e), 1e-9)
	far := math.Max(visible*10, c.Altitude+e.Equatorial)
	return mgl64.Perspective(c.fov(), aspect, visible/1000, far)
}

// Matrix is the combined projection × view matrix consumed by the selector.
func (c Camera) Matrix(viewport r2.Rect, e projection.Ellipsoid) mgl64.Mat4 {
	return c.Projection(viewport, e).Mul4(c.View())
}

// Eye is the camera position in world space.
func (c Camera) Eye() r3.Vector {
	v := c.View()
	if v.Det() == 0 {
		return r3.Vector{}
	}
	p := v.Inv().Mul4x1(mgl64.Vec4{0, 0, 0, 1})
	return r3.Vector{X: p.X() / p.W(), Y: p.Y() / p.W(), Z: p.Z() / p.W()}
}

// Zoom moves the camera towards (negative delta) or away from the surface in
// proportion to the ground currently in view, never below the surface.
func (c Camera) Zoom(delta float64, e projection.Ellipsoid) Camera {
	c.Altitude += delta * c.VisibleGround(e) / 100
	if floor := e.Equatorial * (1 + 1e-7); c.Altitude < floor {
		c.Altitude = floor
	}
	return c
}
