package stream

import (
	"io"
	"log"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// recorder implements the collaborator seams and keeps an ordered trace so
// tests can assert call ordering across seams.
type recorder struct {
	trace    []string
	attached map[string]int
	detached map[string]int
	removed  map[string]int
	genFull  map[string]int
	genData  map[string]int
	complete int
	stalled  int
	dropped  int
	hints    int
}

func newRecorder() *recorder {
	return &recorder{
		attached: map[string]int{},
		detached: map[string]int{},
		removed:  map[string]int{},
		genFull:  map[string]int{},
		genData:  map[string]int{},
	}
}

func (r *recorder) Attach(t *Tile) {
	r.attached[t.Key()]++
	r.trace = append(r.trace, "attach "+t.Key())
}

func (r *recorder) Detach(t *Tile) {
	r.detached[t.Key()]++
	r.trace = append(r.trace, "detach "+t.Key())
}

func (r *recorder) GenerateForTile(cx, cz int, dataOnly bool) {
	key := TileCoord{CX: cx, CZ: cz}.Key()
	if dataOnly {
		r.genData[key]++
	} else {
		r.genFull[key]++
	}
}

func (r *recorder) RemoveForTile(key string, forceCleanup bool) {
	r.removed[key]++
	r.trace = append(r.trace, "remove "+key)
}

func (r *recorder) GenerationComplete() { r.complete++ }
func (r *recorder) QueueStalled(n int)  { r.stalled++; r.dropped += n }
func (r *recorder) HintGC()             { r.hints++ }

func newTestStore(rec *recorder) *ChunkStore {
	collab := Collaborators{
		Scene:   rec,
		Content: []ContentManager{rec},
		Notify:  rec,
		GC:      rec,
	}.withDefaults()
	return NewChunkStore(16, 4, NewTemplateCache(), collab, testLogger())
}

func TestEnsureActiveCreatesDirectly(t *testing.T) {
	rec := newRecorder()
	s := newTestStore(rec)

	c := TileCoord{CX: 2, CZ: -1}
	tile := s.EnsureActive(c)
	if tile == nil || !tile.Realized() {
		t.Fatalf("expected realized tile")
	}
	if tile.X != 2*16+8 || tile.Z != -1*16+8 {
		t.Fatalf("unexpected world position (%v, %v)", tile.X, tile.Z)
	}
	if rec.attached[c.Key()] != 1 {
		t.Fatalf("expected 1 attach, got %d", rec.attached[c.Key()])
	}
	if rec.genFull[c.Key()] != 1 {
		t.Fatalf("expected full content generation on promotion")
	}
	if len(tile.Geometry.Colors) != tile.Geometry.VertexCount()*3 && len(tile.Geometry.Colors) != 0 {
		t.Fatalf("bad color attribute length %d", len(tile.Geometry.Colors))
	}

	// Second call is a lookup, not a rebuild.
	again := s.EnsureActive(c)
	if again != tile {
		t.Fatalf("expected same tile instance")
	}
	if rec.attached[c.Key()] != 1 {
		t.Fatalf("expected no second attach")
	}
}

func TestPlaceholderPromotion(t *testing.T) {
	rec := newRecorder()
	s := newTestStore(rec)

	c := TileCoord{CX: 0, CZ: 3}
	ph := s.AddPlaceholder(c)
	if ph.Realized() {
		t.Fatalf("placeholder must not carry geometry")
	}
	if rec.genData[c.Key()] != 1 {
		t.Fatalf("expected data-only content precompute for placeholder")
	}
	if s.ActiveCount() != 0 || s.BufferedCount() != 1 {
		t.Fatalf("placeholder should live in the buffered tier")
	}

	tile := s.EnsureActive(c)
	if tile != ph {
		t.Fatalf("promotion should reuse the placeholder record")
	}
	if !tile.Realized() {
		t.Fatalf("promotion should realize geometry")
	}
	if s.BufferedCount() != 0 || s.ActiveCount() != 1 {
		t.Fatalf("tile must move tiers, not copy: active=%d buffered=%d", s.ActiveCount(), s.BufferedCount())
	}
}

func TestDemoteKeepsGeometry(t *testing.T) {
	rec := newRecorder()
	s := newTestStore(rec)

	c := TileCoord{CX: 1, CZ: 1}
	tile := s.EnsureActive(c)
	if !s.Demote(c) {
		t.Fatalf("demote should succeed for an active tile")
	}
	if rec.detached[c.Key()] != 1 {
		t.Fatalf("expected detach on demote")
	}
	if tile.Geometry.Disposed() {
		t.Fatalf("demote must not dispose geometry")
	}
	if _, ok := s.Buffered(c); !ok {
		t.Fatalf("demoted tile should be buffered")
	}
	if s.Demote(c) {
		t.Fatalf("demote of a non-active tile should be a no-op")
	}
}

func TestDisposeOrderAndIdempotence(t *testing.T) {
	rec := newRecorder()
	s := newTestStore(rec)

	c := TileCoord{CX: -2, CZ: 4}
	tile := s.EnsureActive(c)
	rec.trace = nil

	if !s.Dispose(c, true) {
		t.Fatalf("dispose should succeed")
	}
	if !tile.Geometry.Disposed() || !tile.Material.Disposed() {
		t.Fatalf("dispose must release geometry and material")
	}
	if s.Has(c) {
		t.Fatalf("disposed tile must leave every tier")
	}
	// Detach must precede the content-manager notification so collaborators
	// never see freed geometry still attached.
	if len(rec.trace) != 2 || rec.trace[0] != "detach "+c.Key() || rec.trace[1] != "remove "+c.Key() {
		t.Fatalf("unexpected dispose trace: %v", rec.trace)
	}
	if rec.removed[c.Key()] != 1 {
		t.Fatalf("expected exactly one content removal")
	}

	if s.Dispose(c, true) {
		t.Fatalf("dispose of an absent key must be a no-op")
	}
	if rec.removed[c.Key()] != 1 {
		t.Fatalf("no-op dispose must not re-notify collaborators")
	}
}

func TestDisposeWithoutCleanupSkipsContentManagers(t *testing.T) {
	rec := newRecorder()
	s := newTestStore(rec)

	c := TileCoord{CX: 7, CZ: 7}
	s.AddPlaceholder(c)
	if !s.Dispose(c, false) {
		t.Fatalf("dispose should succeed")
	}
	if rec.removed[c.Key()] != 0 {
		t.Fatalf("cleanup=false must not notify content managers")
	}
}

func TestTemplateSharing(t *testing.T) {
	rec := newRecorder()
	s := newTestStore(rec)

	a := s.EnsureActive(TileCoord{CX: 0, CZ: 0})
	b := s.EnsureActive(TileCoord{CX: 1, CZ: 0})
	if s.templates.Len() != 1 {
		t.Fatalf("expected a single shared template, got %d", s.templates.Len())
	}
	if a.Geometry == b.Geometry {
		t.Fatalf("tiles must own independent geometry clones")
	}

	tpl := s.templates.GetOrCreate(16, 4)
	s.Dispose(TileCoord{CX: 0, CZ: 0}, true)
	if tpl.Geometry.Disposed() {
		t.Fatalf("disposing a tile must not dispose the shared template")
	}
}
