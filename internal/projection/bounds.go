package projection

import "github.com/paulmach/orb"

// GeoBounds is the geographic extent of a tile in degrees.
type GeoBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Corners returns the NW, NE, SE and SW corners.
func (b GeoBounds) Corners() [4]LonLat {
	return [4]LonLat{
		{Lon: b.West, Lat: b.North},
		{Lon: b.East, Lat: b.North},
		{Lon: b.East, Lat: b.South},
		{Lon: b.West, Lat: b.South},
	}
}

func (b GeoBounds) Center() LonLat {
	return LonLat{Lon: (b.West + b.East) / 2, Lat: (b.North + b.South) / 2}
}

// Contains treats the west and north edges as inclusive so that adjacent tiles
// never both claim a point on their shared edge.
func (b GeoBounds) Contains(ll LonLat) bool {
	return ll.Lon >= b.West && ll.Lon < b.East && ll.Lat <= b.North && ll.Lat > b.South
}

func (b GeoBounds) Orb() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}
