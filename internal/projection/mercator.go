package projection

import "math"

// MercatorLimit is the northernmost latitude covered by slippy map tiles,
// atan(sinh(π)) expressed in degrees.
var MercatorLimit = math.Atan(math.Sinh(math.Pi)) * 180 / math.Pi

// TileToLon returns the longitude of the western edge of tile column x.
// Fractional columns are allowed so meshes can sample inside a tile.
func TileToLon(x float64, zoom uint32) float64 {
	return x/tileCount(zoom)*360 - 180
}

// TileToLat returns the latitude of the northern edge of tile row y.
func TileToLat(y float64, zoom uint32) float64 {
	n := math.Pi - 2*math.Pi*y/tileCount(zoom)
	return 180 / math.Pi * math.Atan(math.Sinh(n))
}

// LonToTile is the fractional tile column containing lon.
func LonToTile(lon float64, zoom uint32) float64 {
	return (lon + 180) / 360 * tileCount(zoom)
}

// LatToTile is the fractional tile row containing lat. Latitudes past the
// Mercator limit map outside [0, 2^zoom].
func LatToTile(lat float64, zoom uint32) float64 {
	rad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * tileCount(zoom)
}

func tileCount(zoom uint32) float64 {
	return math.Ldexp(1, int(zoom))
}
