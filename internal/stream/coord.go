package stream

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"terrastream/internal/mathx"
)

// TileCoord identifies one grid cell of terrain. It is the canonical map key
// across every tier; Key renders the stable string form used for persistence
// and collaborator notification.
type TileCoord struct {
	CX int
	CZ int
}

func (c TileCoord) Key() string {
	return fmt.Sprintf("%d:%d", c.CX, c.CZ)
}

func ParseKey(s string) (TileCoord, error) {
	var c TileCoord
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return c, fmt.Errorf("tile key %q: want cx:cz", s)
	}
	cx, err := strconv.Atoi(parts[0])
	if err != nil {
		return c, fmt.Errorf("tile key %q: %w", s, err)
	}
	cz, err := strconv.Atoi(parts[1])
	if err != nil {
		return c, fmt.Errorf("tile key %q: %w", s, err)
	}
	return TileCoord{CX: cx, CZ: cz}, nil
}

// TileAt maps a world position onto the tile grid.
func TileAt(x, z float64, tileSize int) TileCoord {
	return TileCoord{
		CX: mathx.FloorDiv(int(math.Floor(x)), tileSize),
		CZ: mathx.FloorDiv(int(math.Floor(z)), tileSize),
	}
}

// Chebyshev distance between two tiles; all retention radii use this metric.
func (c TileCoord) Chebyshev(o TileCoord) int {
	return mathx.Chebyshev(c.CX, c.CZ, o.CX, o.CZ)
}

// Center is the world-space position a realized tile is placed at.
func (c TileCoord) Center(tileSize int) (x, z float64) {
	half := float64(tileSize) / 2
	return float64(c.CX*tileSize) + half, float64(c.CZ*tileSize) + half
}
