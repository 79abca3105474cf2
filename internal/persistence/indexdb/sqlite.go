package indexdb

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is an optional read-model index of stream events (tile
// realized/disposed, drain completions, stalls, saves). Writes go through a
// buffered channel into a single writer goroutine so the update loop never
// blocks on disk; events are dropped when the buffer is full.
type SQLiteIndex struct {
	db  *sql.DB
	log *log.Logger

	ch   chan event
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type event struct {
	at     time.Time
	kind   string
	key    string
	detail string
}

// Event kinds.
const (
	KindRealized = "tile_realized"
	KindDisposed = "tile_disposed"
	KindComplete = "gen_complete"
	KindStalled  = "queue_stalled"
	KindSaved    = "state_saved"
)

func OpenSQLite(path string, logger *log.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS stream_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at TEXT NOT NULL,
  kind TEXT NOT NULL,
  tile_key TEXT NOT NULL DEFAULT '',
  detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_stream_events_kind ON stream_events(kind);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	x := &SQLiteIndex{
		db:  db,
		log: logger,
		ch:  make(chan event, 1024),
	}
	x.wg.Add(1)
	go x.writer()
	return x, nil
}

// Record enqueues an event. Nil receiver and full buffer are both fine; the
// index is observability, never a dependency of the stream.
func (x *SQLiteIndex) Record(kind, key, detail string) {
	if x == nil || x.closed.Load() {
		return
	}
	select {
	case x.ch <- event{at: time.Now().UTC(), kind: kind, key: key, detail: detail}:
	default:
		x.dropped.Add(1)
	}
}

func (x *SQLiteIndex) writer() {
	defer x.wg.Done()
	for e := range x.ch {
		_, err := x.db.Exec(
			`INSERT INTO stream_events (at, kind, tile_key, detail) VALUES (?, ?, ?, ?)`,
			e.at.Format(time.RFC3339Nano), e.kind, e.key, e.detail,
		)
		if err != nil {
			x.log.Printf("indexdb: insert: %v", err)
		}
	}
}

func (x *SQLiteIndex) Close() error {
	if x == nil {
		return nil
	}
	var err error
	x.once.Do(func() {
		x.closed.Store(true)
		close(x.ch)
		x.wg.Wait()
		if n := x.dropped.Load(); n > 0 {
			x.log.Printf("indexdb: dropped %d events under backpressure", n)
		}
		err = x.db.Close()
	})
	return err
}
