package colorize

import (
	"terrastream/internal/mathx"
	"terrastream/internal/mesh"
	"terrastream/internal/stream"
	"terrastream/internal/zone"
)

type rgb struct{ r, g, b float32 }

var palette = map[stream.ZoneID]rgb{
	zone.Plains:        {0.36, 0.55, 0.25},
	zone.Forest:        {0.18, 0.38, 0.16},
	zone.Desert:        {0.76, 0.68, 0.45},
	stream.ZoneDefault: {0.42, 0.42, 0.42},
}

// Painter writes per-vertex colors: a zone base color with seeded hash
// jitter per vertex so adjacent tiles of the same zone don't look cloned.
type Painter struct {
	Seed int64
}

func NewPainter(seed int64) *Painter {
	return &Painter{Seed: seed}
}

func (p *Painter) Colorize(g *mesh.Geometry, z stream.ZoneID) {
	base, ok := palette[z]
	if !ok {
		base = palette[stream.ZoneDefault]
	}
	n := g.VertexCount()
	if cap(g.Colors) < n*3 {
		g.Colors = make([]float32, n*3)
	}
	g.Colors = g.Colors[:n*3]
	zi := 0
	if len(z) > 0 {
		zi = int(z[0])
	}
	for i := 0; i < n; i++ {
		// +-4% brightness jitter.
		h := mathx.Hash2(p.Seed, i, zi)
		j := (float32(h%81) - 40) / 1000
		g.Colors[i*3] = clamp01(base.r + j)
		g.Colors[i*3+1] = clamp01(base.g + j)
		g.Colors[i*3+2] = clamp01(base.b + j)
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
