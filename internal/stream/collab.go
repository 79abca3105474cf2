package stream

import "terrastream/internal/mesh"

// ZoneID classifies a tile for coloring and content generation. The zero
// value is never used; absent classifiers map everything to ZoneDefault.
type ZoneID string

const ZoneDefault ZoneID = "DEFAULT"

// SceneGraph is the render-side attach/detach seam. The core never renders;
// it only hands tiles over and takes them back.
type SceneGraph interface {
	Attach(t *Tile)
	Detach(t *Tile)
}

type ZoneClassifier interface {
	ZoneAt(x, z float64) ZoneID
}

// Colorizer writes per-vertex color data for a tile's geometry.
type Colorizer interface {
	Colorize(g *mesh.Geometry, zone ZoneID)
}

// ContentManager is the seam for per-tile game content (structures, decor,
// interactables). GenerateForTile runs data-only for buffered placeholders
// and in full when a tile goes active; RemoveForTile runs on disposal.
type ContentManager interface {
	GenerateForTile(cx, cz int, dataOnly bool)
	RemoveForTile(key string, forceCleanup bool)
}

// GCHinter advises the host runtime after large eviction batches.
type GCHinter interface {
	HintGC()
}

// Notifier receives the only signals this core emits: a drain cycle that
// finished, or one that blew its hard time ceiling and was discarded.
type Notifier interface {
	GenerationComplete()
	QueueStalled(dropped int)
}

// Collaborators bundles the external seams. Any nil field is replaced with a
// no-op default at construction time; callers never need presence checks.
type Collaborators struct {
	Scene   SceneGraph
	Zones   ZoneClassifier
	Colors  Colorizer
	Content []ContentManager
	GC      GCHinter
	Notify  Notifier
}

func (c Collaborators) withDefaults() Collaborators {
	if c.Scene == nil {
		c.Scene = nopScene{}
	}
	if c.Zones == nil {
		c.Zones = singleZone{}
	}
	if c.Colors == nil {
		c.Colors = nopColors{}
	}
	if c.GC == nil {
		c.GC = nopGC{}
	}
	if c.Notify == nil {
		c.Notify = nopNotify{}
	}
	return c
}

type nopScene struct{}

func (nopScene) Attach(*Tile) {}
func (nopScene) Detach(*Tile) {}

type singleZone struct{}

func (singleZone) ZoneAt(x, z float64) ZoneID { return ZoneDefault }

type nopColors struct{}

func (nopColors) Colorize(*mesh.Geometry, ZoneID) {}

type nopGC struct{}

func (nopGC) HintGC() {}

type nopNotify struct{}

func (nopNotify) GenerationComplete() {}
func (nopNotify) QueueStalled(int) {}
