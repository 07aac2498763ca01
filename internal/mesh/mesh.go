// Package mesh builds the renderable surface patch for a single tile.
package mesh

import (
	"tileglobe/internal/projection"
)

// DefaultResolution is the number of grid cells along each tile edge.
const DefaultResolution = 16

// Mesh is an indexed triangle grid covering one tile. Buffers are laid out
// for direct upload: three floats per position and normal, two per UV.
type Mesh struct {
	Positions []float32
	Normals   []float32
	UVs       []float32
	Indices   []uint16
	Bounds    projection.GeoBounds
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// Build samples the tile on a regular grid in tile space, so UVs stay linear
// in the Mercator texture while positions follow the ellipsoid.
// Resolutions above 254 would overflow uint16 indices and are clamped.
func Build(addr projection.Address, e projection.Ellipsoid, resolution int) *Mesh {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if resolution > 254 {
		resolution = 254
	}

	verts := (resolution + 1) * (resolution + 1)
	m := &Mesh{
		Positions: make([]float32, 0, verts*3),
		Normals:   make([]float32, 0, verts*3),
		UVs:       make([]float32, 0, verts*2),
		Indices:   make([]uint16, 0, resolution*resolution*6),
		Bounds:    addr.Bounds(),
	}

	step := 1 / float64(resolution)
	// rows run south to north
	for row := 0; row <= resolution; row++ {
		v := 1 - float64(row)*step
		lat := projection.TileToLat(float64(addr.Y)+v, addr.Zoom)
		for col := 0; col <= resolution; col++ {
			u := float64(col) * step
			lon := projection.TileToLon(float64(addr.X)+u, addr.Zoom)

			pos := e.LonLatToPos(projection.LonLat{Lon: lon, Lat: lat})
			n := e.Normal(pos)
			m.Positions = append(m.Positions, float32(pos.X), float32(pos.Y), float32(pos.Z))
			m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			m.UVs = append(m.UVs, float32(u), float32(v))
		}
	}

	stride := resolution + 1
	for row := 1; row <= resolution; row++ {
		for col := 1; col <= resolution; col++ {
			sw := uint16((row-1)*stride + col - 1)
			se := uint16((row-1)*stride + col)
			nw := uint16(row*stride + col - 1)
			ne := uint16(row*stride + col)
			m.Indices = append(m.Indices, sw, nw, se, se, nw, ne)
		}
	}
	return m
}
