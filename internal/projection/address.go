package projection

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxSupportedZoom bounds addresses so 2^zoom fits comfortably in a uint32.
const MaxSupportedZoom = 30

var ErrInvalidAddress = errors.New("invalid tile address")

// Address identifies a slippy map tile. It is comparable and used directly as
// a map key.
type Address struct {
	Zoom uint32 `json:"z"`
	X    uint32 `json:"x"`
	Y    uint32 `json:"y"`
}

// Root is the single zoom 0 tile covering the whole Mercator square.
var Root = Address{}

// NewAddress validates the combination before returning it.
func NewAddress(zoom, x, y uint32) (Address, error) {
	a := Address{Zoom: zoom, X: x, Y: y}
	if !a.Valid() {
		return Address{}, fmt.Errorf("%w: %d/%d/%d", ErrInvalidAddress, zoom, x, y)
	}
	return a, nil
}

// ParseAddress parses the canonical "z/x/y" form.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var vals [3]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
		}
		vals[i] = uint32(v)
	}
	return NewAddress(vals[0], vals[1], vals[2])
}

func (a Address) Valid() bool {
	if a.Zoom > MaxSupportedZoom {
		return false
	}
	n := uint32(1) << a.Zoom
	return a.X < n && a.Y < n
}

// String is the canonical cache key form "z/x/y".
func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Zoom, a.X, a.Y)
}

// Children returns the four tiles of the next zoom level in row-major order.
func (a Address) Children() [4]Address {
	z, x, y := a.Zoom+1, a.X*2, a.Y*2
	return [4]Address{
		{Zoom: z, X: x, Y: y},
		{Zoom: z, X: x + 1, Y: y},
		{Zoom: z, X: x, Y: y + 1},
		{Zoom: z, X: x + 1, Y: y + 1},
	}
}

// Parent returns the enclosing tile one level up. The root is its own parent.
func (a Address) Parent() Address {
	if a.Zoom == 0 {
		return a
	}
	return Address{Zoom: a.Zoom - 1, X: a.X / 2, Y: a.Y / 2}
}

func (a Address) Bounds() GeoBounds {
	return GeoBounds{
		North: TileToLat(float64(a.Y), a.Zoom),
		South: TileToLat(float64(a.Y+1), a.Zoom),
		East:  TileToLon(float64(a.X+1), a.Zoom),
		West:  TileToLon(float64(a.X), a.Zoom),
	}
}

func (a Address) Maptile() maptile.Tile {
	return maptile.New(a.X, a.Y, maptile.Zoom(a.Zoom))
}

// AddressAt returns the tile at zoom containing lon/lat. Latitudes beyond the
// Mercator limit are clamped to the first or last row.
func AddressAt(lon, lat float64, zoom uint32) Address {
	lat = math.Max(-MercatorLimit+1e-9, math.Min(MercatorLimit-1e-9, lat))
	lon = math.Max(-180, math.Min(180, lon))

	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))
	last := uint32(1)<<zoom - 1
	return Address{Zoom: zoom, X: min(t.X, last), Y: min(t.Y, last)}
}
