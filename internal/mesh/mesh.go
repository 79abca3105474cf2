package mesh

// Geometry is the CPU-side vertex data for one renderable tile mesh:
// interleaved-free position triples and an optional color attribute of the
// same vertex count. Render backends receive it opaquely through the scene
// graph; this package only manages its lifetime.
type Geometry struct {
	Positions []float32 // xyz per vertex
	Colors    []float32 // rgb per vertex, len = VertexCount*3 once colorized

	disposed bool
}

func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// Clone returns an independently owned copy. The clone starts undisposed
// regardless of the receiver's state.
func (g *Geometry) Clone() *Geometry {
	c := &Geometry{
		Positions: make([]float32, len(g.Positions)),
		Colors:    make([]float32, len(g.Colors)),
	}
	copy(c.Positions, g.Positions)
	copy(c.Colors, g.Colors)
	return c
}

// Dispose releases the vertex buffers. Safe to call more than once.
func (g *Geometry) Dispose() {
	if g == nil || g.disposed {
		return
	}
	g.Positions = nil
	g.Colors = nil
	g.disposed = true
}

func (g *Geometry) Disposed() bool {
	return g != nil && g.disposed
}

// Material pairs a shading mode with its texture bindings. Realized tiles own
// their material instance; disposing it releases every binding.
type Material struct {
	VertexColored bool
	Textures      []TextureBinding

	disposed bool
}

type TextureBinding struct {
	Slot string
	Name string
}

func (m *Material) Clone() *Material {
	c := &Material{
		VertexColored: m.VertexColored,
		Textures:      make([]TextureBinding, len(m.Textures)),
	}
	copy(c.Textures, m.Textures)
	return c
}

func (m *Material) Dispose() {
	if m == nil || m.disposed {
		return
	}
	m.Textures = nil
	m.disposed = true
}

func (m *Material) Disposed() bool {
	return m != nil && m.disposed
}

// Grid builds a flat tileSize x tileSize vertex grid at y=0 with
// resolution segments per side, vertices in local tile space.
func Grid(tileSize, resolution int) *Geometry {
	if resolution < 1 {
		resolution = 1
	}
	side := resolution + 1
	step := float32(tileSize) / float32(resolution)
	g := &Geometry{Positions: make([]float32, 0, side*side*3)}
	for z := 0; z < side; z++ {
		for x := 0; x < side; x++ {
			g.Positions = append(g.Positions, float32(x)*step, 0, float32(z)*step)
		}
	}
	return g
}
