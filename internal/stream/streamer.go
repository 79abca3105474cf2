package stream

import (
	"log"
	"math"
	"time"

	"terrastream/internal/mathx"
)

// Params are the streaming knobs. Radii are Chebyshev distances in tiles;
// the drain timings were tuned empirically and are configuration, not
// contract.
type Params struct {
	TileSize   int
	Resolution int

	ActiveRadius   int
	BufferRadius   int
	EvictionRadius int

	DrainBudget   time.Duration
	DrainCeiling  time.Duration
	DrainCooldown time.Duration

	QueueCap   int
	EnqueueCap int

	// Probability (permille) that an update also sweeps stale buffered tiles.
	SweepPermille int

	Seed int64
}

func (p Params) withDefaults() Params {
	if p.TileSize <= 0 {
		p.TileSize = 64
	}
	if p.Resolution <= 0 {
		p.Resolution = 16
	}
	if p.ActiveRadius <= 0 {
		p.ActiveRadius = 1
	}
	if p.BufferRadius < p.ActiveRadius {
		p.BufferRadius = p.ActiveRadius + 2
	}
	if p.EvictionRadius < p.BufferRadius {
		p.EvictionRadius = p.BufferRadius + 1
	}
	if p.DrainBudget <= 0 {
		p.DrainBudget = 4 * time.Millisecond
	}
	if p.DrainCeiling <= p.DrainBudget {
		p.DrainCeiling = 250 * time.Millisecond
	}
	if p.DrainCooldown < 0 {
		p.DrainCooldown = 0
	} else if p.DrainCooldown == 0 {
		p.DrainCooldown = time.Second
	}
	if p.QueueCap <= 0 {
		p.QueueCap = 256
	}
	if p.EnqueueCap <= 0 {
		p.EnqueueCap = 64
	}
	if p.SweepPermille == 0 {
		p.SweepPermille = 50 // negative disables the sweep entirely
	}
	return p
}

// Streamer keeps a bounded set of terrain tiles resident around a moving
// viewer: a synchronously guaranteed active square, an eventually consistent
// buffered ring filled by a frame-budgeted background queue, and
// distance-based eviction beyond that. Everything runs on the caller's
// logical thread; the only suspension point is the drain continuation polled
// through Tick.
type Streamer struct {
	p      Params
	collab Collaborators
	log    *log.Logger

	templates *TemplateCache
	store     *ChunkStore
	queue     *genQueue

	viewer    TileCoord
	hasViewer bool

	drainActive    bool
	lastDrainStart time.Time

	updateSeq int
	now       func() time.Time
}

func New(p Params, collab Collaborators, logger *log.Logger) *Streamer {
	p = p.withDefaults()
	collab = collab.withDefaults()
	templates := NewTemplateCache()
	return &Streamer{
		p:         p,
		collab:    collab,
		log:       logger,
		templates: templates,
		store:     NewChunkStore(p.TileSize, p.Resolution, templates, collab, logger),
		queue:     newGenQueue(p.QueueCap, p.EnqueueCap, p.DrainBudget, p.DrainCeiling, logger),
		now:       time.Now,
	}
}

func (s *Streamer) Store() *ChunkStore { return s.store }
func (s *Streamer) QueueLen() int      { return s.queue.Len() }

// GetTerrainHeight is the heightfield seam. The terrain is flat in this
// design, so it always answers 0.
func (s *Streamer) GetTerrainHeight(x, z float64) float64 {
	return 0
}

// UpdateForViewer drives one streaming step for a viewer at the given world
// position. activeRadiusMultiplier scales the configured active radius
// (values <= 0 mean unscaled). The active square is guaranteed synchronously;
// buffering, draining and eviction follow.
func (s *Streamer) UpdateForViewer(x, z float64, activeRadiusMultiplier float64) {
	center := TileAt(x, z, s.p.TileSize)
	if s.hasViewer && center != s.viewer {
		s.queue.UpdateDirection(s.viewer, center)
	}
	s.viewer = center
	s.hasViewer = true
	s.updateSeq++

	activeR := s.p.ActiveRadius
	if activeRadiusMultiplier > 0 {
		activeR = int(math.Round(float64(activeR) * activeRadiusMultiplier))
		if activeR < 0 {
			activeR = 0
		}
	}

	// The visible square is never allowed to lag the viewer.
	for dz := -activeR; dz <= activeR; dz++ {
		for dx := -activeR; dx <= activeR; dx++ {
			s.store.EnsureActive(TileCoord{CX: center.CX + dx, CZ: center.CZ + dz})
		}
	}

	s.queue.Enqueue(center, s.p.BufferRadius, s.store.Has)
	s.pumpDrain()
	s.retire(center, activeR)

	if s.p.SweepPermille > 0 && mathx.Hash2(s.p.Seed^0x5eed, s.updateSeq, 0)%1000 < uint64(s.p.SweepPermille) {
		s.sweepBuffer(center, s.p.BufferRadius)
	}
}

// Tick is the cooperative scheduling turn: the host calls it once per frame
// so an unfinished drain cycle can resume without blocking any single frame.
func (s *Streamer) Tick() {
	s.pumpDrain()
}

func (s *Streamer) pumpDrain() {
	if s.queue.Len() == 0 {
		if s.drainActive {
			s.drainActive = false
			s.collab.Notify.GenerationComplete()
		}
		return
	}
	now := s.now()
	if !s.drainActive {
		if now.Sub(s.lastDrainStart) < s.p.DrainCooldown {
			return
		}
		s.drainActive = true
		s.lastDrainStart = now
	}
	_, remaining, discarded := s.queue.drainSlice(func(c TileCoord) {
		s.store.AddPlaceholder(c)
	})
	if discarded {
		s.drainActive = false
		s.collab.Notify.QueueStalled(remaining)
		return
	}
	if remaining == 0 {
		s.drainActive = false
		s.collab.Notify.GenerationComplete()
	}
}

// retire demotes active tiles that fell outside the active square and
// disposes anything resident beyond the eviction radius.
func (s *Streamer) retire(center TileCoord, activeR int) {
	var demote, evict []TileCoord
	for c := range s.store.active {
		d := c.Chebyshev(center)
		if d <= activeR {
			continue
		}
		if d > s.p.EvictionRadius {
			evict = append(evict, c)
		} else {
			demote = append(demote, c)
		}
	}
	for _, c := range demote {
		s.store.Demote(c)
	}
	for c := range s.store.buffered {
		if c.Chebyshev(center) > s.p.EvictionRadius {
			evict = append(evict, c)
		}
	}
	disposed := 0
	for _, c := range evict {
		if s.store.Dispose(c, true) {
			disposed++
		}
	}
	s.queue.DropBeyond(center, s.p.EvictionRadius)
	if disposed > 3 {
		s.collab.GC.HintGC()
	}
}

// sweepBuffer trims buffered tiles outside the buffer radius. Invoked only
// probabilistically; the deterministic backstop is retire/ClearBeyond.
func (s *Streamer) sweepBuffer(center TileCoord, bufferR int) {
	var stale []TileCoord
	for c := range s.store.buffered {
		if c.Chebyshev(center) > bufferR {
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		s.store.Dispose(c, true)
	}
}

// ClearBeyond disposes every resident tile farther than maxDistance from
// center and drops matching queue entries. Used for large viewer teleports
// where incremental demotion would leave stale far-away tiles resident.
func (s *Streamer) ClearBeyond(center TileCoord, maxDistance int) {
	var gone []TileCoord
	for c := range s.store.active {
		if c.Chebyshev(center) > maxDistance {
			gone = append(gone, c)
		}
	}
	for c := range s.store.buffered {
		if c.Chebyshev(center) > maxDistance {
			gone = append(gone, c)
		}
	}
	disposed := 0
	for _, c := range gone {
		if s.store.Dispose(c, true) {
			disposed++
		}
	}
	s.queue.DropBeyond(center, maxDistance)
	if disposed > 3 {
		s.collab.GC.HintGC()
	}
}

// Clear is full teardown: every resident tile disposed, queue emptied,
// templates released.
func (s *Streamer) Clear() {
	for _, c := range s.store.Keys() {
		s.store.Dispose(c, true)
	}
	s.queue.Reset()
	s.templates.Clear()
	s.drainActive = false
	s.hasViewer = false
}

// Save captures the flat set of resident tile keys. Geometry is not
// persisted; tiles regenerate lazily after Load.
func (s *Streamer) Save() []string {
	coords := s.store.Keys()
	keys := make([]string, 0, len(coords))
	for _, c := range coords {
		keys = append(keys, c.Key())
	}
	return keys
}

// Load restores saved keys as buffered placeholders. Malformed keys are
// skipped individually; one bad entry must not abort the rest.
func (s *Streamer) Load(keys []string) {
	loaded := 0
	for _, k := range keys {
		c, err := ParseKey(k)
		if err != nil {
			s.log.Printf("load: skipping %v", err)
			continue
		}
		if s.store.Has(c) || s.queue.Contains(c) {
			continue
		}
		s.store.AddPlaceholder(c)
		loaded++
	}
	if loaded > 0 {
		s.log.Printf("load: restored %d tile placeholders", loaded)
	}
}
