package engine

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"terrastream/internal/protocol"
	"terrastream/internal/stream"
)

// Loop owns the single logical thread the streaming core runs on. Viewer
// updates arrive over a channel; each tick applies the most recent one,
// pumps the drain continuation and broadcasts the batched chunk events to
// subscribers.
type Loop struct {
	st    *stream.Streamer
	relay *Relay
	log   *log.Logger

	tickEvery time.Duration
	updates   chan protocol.ViewerUpdateMsg

	mu   sync.Mutex
	subs map[chan []byte]struct{}

	tick uint64
}

func NewLoop(st *stream.Streamer, relay *Relay, tickEvery time.Duration, logger *log.Logger) *Loop {
	if tickEvery <= 0 {
		tickEvery = 50 * time.Millisecond
	}
	return &Loop{
		st:        st,
		relay:     relay,
		log:       logger,
		tickEvery: tickEvery,
		updates:   make(chan protocol.ViewerUpdateMsg, 16),
		subs:      map[chan []byte]struct{}{},
	}
}

// Submit queues a viewer update; stale updates are superseded, not queued
// indefinitely, so a slow loop never builds a position backlog.
func (l *Loop) Submit(u protocol.ViewerUpdateMsg) {
	for {
		select {
		case l.updates <- u:
			return
		default:
			select {
			case <-l.updates:
			default:
			}
		}
	}
}

func (l *Loop) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	return ch
}

func (l *Loop) Unsubscribe(ch chan []byte) {
	l.mu.Lock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
	l.mu.Unlock()
}

// Run drives the loop until ctx is cancelled. The streamer must not be
// touched from other goroutines while Run is active.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.step()
		}
	}
}

func (l *Loop) step() {
	l.tick++

	var latest *protocol.ViewerUpdateMsg
drain:
	for {
		select {
		case u := <-l.updates:
			latest = &u
		default:
			break drain
		}
	}
	if latest != nil {
		l.st.UpdateForViewer(latest.X, latest.Z, latest.RadiusMultiplier)
	} else {
		l.st.Tick()
	}

	ev, states, any := l.relay.flush()
	if any {
		ev.Tick = l.tick
		l.broadcastJSON(ev)
	}
	for _, st := range states {
		st.Tick = l.tick
		l.broadcastJSON(st)
	}
}

func (l *Loop) broadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		l.log.Printf("loop: marshal broadcast: %v", err)
		return
	}
	l.mu.Lock()
	for ch := range l.subs {
		select {
		case ch <- b:
		default: // slow subscriber, drop
		}
	}
	l.mu.Unlock()
}

// SaveKeys reads the resident key set. Only safe once Run has returned or
// before it starts.
func (l *Loop) SaveKeys() []string {
	return l.st.Save()
}
