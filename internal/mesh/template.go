package mesh

// Template is the shared base geometry+material for a given tile shape.
// Templates are immutable after construction; tiles clone them and own the
// clones. Only full-system teardown disposes the originals.
type Template struct {
	TileSize   int
	Resolution int

	Geometry *Geometry
	Material *Material
}

func NewTemplate(tileSize, resolution int) *Template {
	return &Template{
		TileSize:   tileSize,
		Resolution: resolution,
		Geometry:   Grid(tileSize, resolution),
		Material: &Material{
			VertexColored: true,
			Textures:      []TextureBinding{{Slot: "albedo", Name: "terrain_base"}},
		},
	}
}

func (t *Template) Dispose() {
	if t == nil {
		return
	}
	t.Geometry.Dispose()
	t.Material.Dispose()
}
