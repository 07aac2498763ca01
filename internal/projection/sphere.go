package projection

import (
	"math"

	"github.com/golang/geo/r3"
)

type LonLat struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Ellipsoid is an oblate spheroid with its polar axis along +Y.
type Ellipsoid struct {
	Equatorial float64
	Polar      float64
}

var (
	UnitSphere = Ellipsoid{Equatorial: 1, Polar: 1}

	// WGS84 radii in kilometres.
	WGS84 = Ellipsoid{Equatorial: 6378.137, Polar: 6356.7523142}
)

// LonLatToPos maps degrees onto the unit sphere. Longitude 0 faces +Z,
// longitude 90 faces +X and the north pole is +Y.
func LonLatToPos(ll LonLat) r3.Vector {
	lon := (ll.Lon + 90) * math.Pi / 180
	lat := ll.Lat * math.Pi / 180
	return r3.Vector{
		X: -math.Cos(lon) * math.Cos(lat),
		Y: math.Sin(lat),
		Z: math.Sin(lon) * math.Cos(lat),
	}
}

// PosToLonLat is the inverse of LonLatToPos. The input does not need to be
// unit length.
func PosToLonLat(p r3.Vector) LonLat {
	if n := p.Norm(); n > 0 {
		p = p.Mul(1 / n)
	}
	y := math.Max(-1, math.Min(1, -p.Y))
	return LonLat{
		Lon: math.Atan2(p.X, p.Z) * 180 / math.Pi,
		Lat: math.Acos(y)*180/math.Pi - 90,
	}
}

func (e Ellipsoid) LonLatToPos(ll LonLat) r3.Vector {
	p := LonLatToPos(ll)
	return r3.Vector{X: p.X * e.Equatorial, Y: p.Y * e.Polar, Z: p.Z * e.Equatorial}
}

func (e Ellipsoid) PosToLonLat(p r3.Vector) LonLat {
	return PosToLonLat(e.unscale(p))
}

// Normal is the outward surface normal at a point on the ellipsoid.
func (e Ellipsoid) Normal(p r3.Vector) r3.Vector {
	a2 := e.Equatorial * e.Equatorial
	b2 := e.Polar * e.Polar
	return r3.Vector{X: p.X / a2, Y: p.Y / b2, Z: p.Z / a2}.Normalize()
}

// Intersect returns the nearest non-negative distance t along the ray
// origin+t*dir at which it meets the ellipsoid surface.
func (e Ellipsoid) Intersect(origin, dir r3.Vector) (float64, bool) {
	o := e.unscale(origin)
	d := e.unscale(dir)

	a := d.Dot(d)
	b := 2 * o.Dot(d)
	c := o.Dot(o) - 1
	disc := b*b - 4*a*c
	if a == 0 || disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := (-b - sq) / (2 * a)
	if t < 0 {
		t = (-b + sq) / (2 * a)
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

func (e Ellipsoid) unscale(p r3.Vector) r3.Vector {
	return r3.Vector{X: p.X / e.Equatorial, Y: p.Y / e.Polar, Z: p.Z / e.Equatorial}
}
