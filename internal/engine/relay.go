package engine

import (
	"runtime/debug"
	"strconv"

	"terrastream/internal/persistence/indexdb"
	"terrastream/internal/protocol"
	"terrastream/internal/stream"
)

// Relay implements the core's collaborator seams for the server runtime. It
// batches tile transitions per tick for the transport layer and forwards
// them to the optional sqlite index. All calls happen on the loop goroutine,
// so no locking is needed here.
type Relay struct {
	idx *indexdb.SQLiteIndex

	attached []string
	detached []string
	disposed []string
	states   []protocol.StreamStateMsg
}

func NewRelay(idx *indexdb.SQLiteIndex) *Relay {
	return &Relay{idx: idx}
}

func (r *Relay) Attach(t *stream.Tile) {
	k := t.Key()
	r.attached = append(r.attached, k)
	r.idx.Record(indexdb.KindRealized, k, string(t.Zone))
}

func (r *Relay) Detach(t *stream.Tile) {
	r.detached = append(r.detached, t.Key())
}

// GenerateForTile is the content-manager seam; the server ships no tile
// content, so only disposal is observed.
func (r *Relay) GenerateForTile(cx, cz int, dataOnly bool) {}

func (r *Relay) RemoveForTile(key string, forceCleanup bool) {
	r.disposed = append(r.disposed, key)
	r.idx.Record(indexdb.KindDisposed, key, "")
}

func (r *Relay) GenerationComplete() {
	r.states = append(r.states, protocol.StreamStateMsg{
		Type:   protocol.TypeStreamState,
		Status: protocol.StatusComplete,
	})
	r.idx.Record(indexdb.KindComplete, "", "")
}

func (r *Relay) QueueStalled(dropped int) {
	r.states = append(r.states, protocol.StreamStateMsg{
		Type:    protocol.TypeStreamState,
		Status:  protocol.StatusStalled,
		Dropped: dropped,
	})
	r.idx.Record(indexdb.KindStalled, "", strconv.Itoa(dropped))
}

// flush hands the batched events over and resets the accumulators.
func (r *Relay) flush() (ev protocol.ChunkEventMsg, states []protocol.StreamStateMsg, any bool) {
	any = len(r.attached)+len(r.detached)+len(r.disposed) > 0
	ev = protocol.ChunkEventMsg{
		Type:     protocol.TypeChunkEvent,
		Attached: r.attached,
		Detached: r.detached,
		Disposed: r.disposed,
	}
	states = r.states
	r.attached = nil
	r.detached = nil
	r.disposed = nil
	r.states = nil
	return ev, states, any
}

// GCHint forwards the core's memory-pressure hint to the Go runtime.
type GCHint struct{}

func (GCHint) HintGC() {
	debug.FreeOSMemory()
}
