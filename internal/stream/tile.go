package stream

import "terrastream/internal/mesh"

// Tile is one resident grid cell. A placeholder carries only coordinate and
// zone; realizing it clones the shared template, positions the geometry in
// world space and applies vertex colors. The tile owns its clones and is the
// only thing allowed to dispose them.
type Tile struct {
	Coord TileCoord
	Zone  ZoneID

	Geometry *mesh.Geometry
	Material *mesh.Material

	// World-space placement of the realized geometry.
	X, Y, Z float64

	attached bool
}

// Realized reports whether geometry has been built for this tile.
func (t *Tile) Realized() bool {
	return t.Geometry != nil
}

func (t *Tile) Key() string {
	return t.Coord.Key()
}
