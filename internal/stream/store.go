package stream

import (
	"log"
	"sort"
)

// ChunkStore owns the resident tiers: active tiles (attached to the scene
// graph) and buffered tiles (retained but hidden, possibly still
// placeholders). It is the only component that touches the scene graph, and
// it maintains the invariant that a coordinate lives in at most one tier.
type ChunkStore struct {
	tileSize   int
	resolution int

	templates *TemplateCache
	collab    Collaborators
	log       *log.Logger

	active   map[TileCoord]*Tile
	buffered map[TileCoord]*Tile
}

func NewChunkStore(tileSize, resolution int, templates *TemplateCache, collab Collaborators, logger *log.Logger) *ChunkStore {
	return &ChunkStore{
		tileSize:   tileSize,
		resolution: resolution,
		templates:  templates,
		collab:     collab,
		log:        logger,
		active:     map[TileCoord]*Tile{},
		buffered:   map[TileCoord]*Tile{},
	}
}

func (s *ChunkStore) Has(c TileCoord) bool {
	if _, ok := s.active[c]; ok {
		return true
	}
	_, ok := s.buffered[c]
	return ok
}

func (s *ChunkStore) ActiveCount() int   { return len(s.active) }
func (s *ChunkStore) BufferedCount() int { return len(s.buffered) }

func (s *ChunkStore) Active(c TileCoord) (*Tile, bool) {
	t, ok := s.active[c]
	return t, ok
}

func (s *ChunkStore) Buffered(c TileCoord) (*Tile, bool) {
	t, ok := s.buffered[c]
	return t, ok
}

// Keys returns every resident coordinate, active and buffered, in stable
// order. This is the persisted "which tiles exist" state.
func (s *ChunkStore) Keys() []TileCoord {
	keys := make([]TileCoord, 0, len(s.active)+len(s.buffered))
	for c := range s.active {
		keys = append(keys, c)
	}
	for c := range s.buffered {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// EnsureActive returns the realized, attached tile for c, creating or
// promoting it synchronously. Active-radius tiles must never be missing even
// under queue backlog, so a cold coordinate is built directly, bypassing the
// buffer tier.
func (s *ChunkStore) EnsureActive(c TileCoord) *Tile {
	if t, ok := s.active[c]; ok {
		return t
	}
	t, ok := s.buffered[c]
	if ok {
		delete(s.buffered, c)
	} else {
		t = s.newPlaceholder(c)
	}
	if !t.Realized() {
		s.realize(t)
	}
	s.active[c] = t
	t.attached = true
	s.collab.Scene.Attach(t)
	for _, m := range s.collab.Content {
		m.GenerateForTile(c.CX, c.CZ, false)
	}
	return t
}

// AddPlaceholder reserves a buffered placeholder for c: coordinate and zone
// only, no geometry. The expensive build is deferred until promotion. No-op
// when c is already resident.
func (s *ChunkStore) AddPlaceholder(c TileCoord) *Tile {
	if t, ok := s.active[c]; ok {
		return t
	}
	if t, ok := s.buffered[c]; ok {
		return t
	}
	t := s.newPlaceholder(c)
	s.buffered[c] = t
	for _, m := range s.collab.Content {
		m.GenerateForTile(c.CX, c.CZ, true)
	}
	return t
}

// Demote hides an active tile: detached from the scene graph, moved to the
// buffered tier with its geometry intact for a cheap re-show later.
func (s *ChunkStore) Demote(c TileCoord) bool {
	t, ok := s.active[c]
	if !ok {
		return false
	}
	delete(s.active, c)
	s.collab.Scene.Detach(t)
	t.attached = false
	s.buffered[c] = t
	return true
}

// Dispose fully releases a tile from whichever tier holds it, in fixed
// order: detach, geometry, material, map removal, then collaborator cleanup.
// Collaborators are notified last so they can never touch freed geometry.
// An absent coordinate is a no-op.
func (s *ChunkStore) Dispose(c TileCoord, cleanup bool) bool {
	t, ok := s.active[c]
	from := s.active
	if !ok {
		t, ok = s.buffered[c]
		from = s.buffered
	}
	if !ok {
		return false
	}
	if t.attached {
		s.collab.Scene.Detach(t)
		t.attached = false
	}
	t.Geometry.Dispose()
	t.Material.Dispose()
	delete(from, c)
	if cleanup {
		key := c.Key()
		for _, m := range s.collab.Content {
			m.RemoveForTile(key, true)
		}
	}
	return true
}

func (s *ChunkStore) newPlaceholder(c TileCoord) *Tile {
	x, z := c.Center(s.tileSize)
	return &Tile{
		Coord: c,
		Zone:  s.collab.Zones.ZoneAt(x, z),
	}
}

// realize builds geometry for a placeholder: clone the cached template,
// place it at the tile's world center and apply vertex colors.
func (s *ChunkStore) realize(t *Tile) {
	tpl := s.templates.GetOrCreate(s.tileSize, s.resolution)
	t.Geometry = tpl.Geometry.Clone()
	t.Material = tpl.Material.Clone()
	t.X, t.Z = t.Coord.Center(s.tileSize)
	t.Y = 0
	s.collab.Colors.Colorize(t.Geometry, t.Zone)
}
