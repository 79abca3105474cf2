package zone

import (
	"math"

	"terrastream/internal/mathx"
	"terrastream/internal/stream"
)

const (
	Plains stream.ZoneID = "PLAINS"
	Forest stream.ZoneID = "FOREST"
	Desert stream.ZoneID = "DESERT"
)

// Classifier assigns zones by seeded hashing over region cells, so nearby
// tiles usually share a zone and the assignment is stable per seed.
type Classifier struct {
	Seed       int64
	RegionSize int // world units per region cell
}

func NewClassifier(seed int64, regionSize int) *Classifier {
	if regionSize <= 0 {
		regionSize = 256
	}
	return &Classifier{Seed: seed, RegionSize: regionSize}
}

func (c *Classifier) ZoneAt(x, z float64) stream.ZoneID {
	rx := mathx.FloorDiv(int(math.Floor(x)), c.RegionSize)
	rz := mathx.FloorDiv(int(math.Floor(z)), c.RegionSize)
	switch mathx.Hash2(c.Seed, rx, rz) % 3 {
	case 0:
		return Plains
	case 1:
		return Forest
	default:
		return Desert
	}
}
