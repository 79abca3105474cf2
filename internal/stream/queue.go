package stream

import (
	"log"
	"math"
	"sort"
	"time"
)

type pendingTile struct {
	coord    TileCoord
	priority float64
}

// genQueue is the bounded priority queue of coordinates to pre-generate.
// Candidates ahead of the viewer's movement direction score higher. The
// queue merges new candidates against a tracking set rather than rebuilding,
// so in-flight placeholder work is never discarded by a routine update.
type genQueue struct {
	entries []pendingTile
	queued  map[TileCoord]struct{}

	dirX float64
	dirZ float64

	maxLen     int
	maxPerCall int

	budget   time.Duration
	ceiling  time.Duration
	draining bool

	now func() time.Time
	log *log.Logger
}

func newGenQueue(maxLen, maxPerCall int, budget, ceiling time.Duration, logger *log.Logger) *genQueue {
	return &genQueue{
		queued:     map[TileCoord]struct{}{},
		maxLen:     maxLen,
		maxPerCall: maxPerCall,
		budget:     budget,
		ceiling:    ceiling,
		now:        time.Now,
		log:        logger,
	}
}

func (q *genQueue) Len() int {
	return len(q.entries)
}

func (q *genQueue) Contains(c TileCoord) bool {
	_, ok := q.queued[c]
	return ok
}

// UpdateDirection recomputes the movement-direction unit vector from a tile
// coordinate change. A zero delta keeps the previous direction; a stationary
// viewer implies nothing about where it is heading.
func (q *genQueue) UpdateDirection(prev, cur TileCoord) {
	dx := float64(cur.CX - prev.CX)
	dz := float64(cur.CZ - prev.CZ)
	n := math.Hypot(dx, dz)
	if n == 0 {
		return
	}
	q.dirX = dx / n
	q.dirZ = dz / n
}

// Enqueue scans the square of Chebyshev radius r around center and merges
// unseen candidates into the queue. held reports coordinates already resident
// in a store tier; those and already-queued coordinates are skipped. Both the
// per-call addition count and the total queue length are capped, then the
// queue is re-sorted by descending priority.
func (q *genQueue) Enqueue(center TileCoord, r int, held func(TileCoord) bool) int {
	added := 0
scan:
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			if added >= q.maxPerCall || len(q.entries) >= q.maxLen {
				break scan
			}
			c := TileCoord{CX: center.CX + dx, CZ: center.CZ + dz}
			if _, ok := q.queued[c]; ok {
				continue
			}
			if held(c) {
				continue
			}
			q.entries = append(q.entries, pendingTile{
				coord:    c,
				priority: float64(dx)*q.dirX + float64(dz)*q.dirZ,
			})
			q.queued[c] = struct{}{}
			added++
		}
	}
	if added > 0 {
		q.sortByPriority(center)
	}
	return added
}

func (q *genQueue) sortByPriority(center TileCoord) {
	sort.SliceStable(q.entries, func(i, j int) bool {
		if q.entries[i].priority != q.entries[j].priority {
			return q.entries[i].priority > q.entries[j].priority
		}
		return q.entries[i].coord.Chebyshev(center) < q.entries[j].coord.Chebyshev(center)
	})
}

// drainSlice pops entries in priority order and materializes each through
// place until the time budget elapses. If a single slice overruns the hard
// ceiling the whole queue is discarded; a runaway build must not be allowed
// to stall further frames. Returns the processed count, what remains (the
// dropped count when discarded), and whether the queue was discarded.
func (q *genQueue) drainSlice(place func(TileCoord)) (processed, remaining int, discarded bool) {
	if q.draining {
		return 0, len(q.entries), false
	}
	q.draining = true
	defer func() { q.draining = false }()

	start := q.now()
	for len(q.entries) > 0 {
		elapsed := q.now().Sub(start)
		if elapsed >= q.budget {
			if elapsed >= q.ceiling {
				dropped := len(q.entries)
				q.Reset()
				q.log.Printf("generation queue discarded: slice ran %v (ceiling %v), dropped %d", elapsed, q.ceiling, dropped)
				return processed, dropped, true
			}
			break
		}
		e := q.entries[0]
		q.entries = q.entries[1:]
		delete(q.queued, e.coord)
		place(e.coord)
		processed++
	}
	return processed, len(q.entries), false
}

// DropBeyond filters out queued entries farther than maxDistance from
// center. Used by teleport-scale eviction.
func (q *genQueue) DropBeyond(center TileCoord, maxDistance int) int {
	kept := q.entries[:0]
	dropped := 0
	for _, e := range q.entries {
		if e.coord.Chebyshev(center) > maxDistance {
			delete(q.queued, e.coord)
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return dropped
}

func (q *genQueue) Reset() {
	q.entries = nil
	q.queued = map[TileCoord]struct{}{}
}
