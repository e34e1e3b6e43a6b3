// Package pending implements the stream-id keyed handoff table used to
// deliver agent-initiated messages (ping/pong, and any response that isn't
// read inline off the request's own stream) to the goroutine awaiting them.
//
// A buffered channel of capacity 1 stands in for a single-use "oneshot"
// channel: a background goroutine hands exactly one result back to
// whichever goroutine is waiting on it.
package pending

import (
	"sync"

	"github.com/google/uuid"

	"tiflis-tunnel/internal/protocol"
)

type slot chan protocol.Message

// Table maps a stream id to the one-shot slot awaiting its response.
type Table struct {
	mu    sync.Mutex
	slots map[uuid.UUID]slot
}

// New creates an empty Table.
func New() *Table {
	return &Table{slots: make(map[uuid.UUID]slot)}
}

// Register reserves a slot for id and returns the channel its eventual
// response (or cancellation-via-close) will arrive on.
func (t *Table) Register(id uuid.UUID) <-chan protocol.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := make(slot, 1)
	t.slots[id] = s
	return s
}

// Complete delivers msg to the slot registered for id, if any, and reports
// whether a waiter was present. A missing slot means the caller already
// cancelled, or nothing was ever registered for this id; either way the
// message is dropped silently.
func (t *Table) Complete(id uuid.UUID, msg protocol.Message) bool {
	t.mu.Lock()
	s, ok := t.slots[id]
	if ok {
		delete(t.slots, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	s <- msg
	return true
}

// Cancel removes id's slot without delivering anything, waking up any
// waiter with a closed, empty channel.
func (t *Table) Cancel(id uuid.UUID) {
	t.mu.Lock()
	s, ok := t.slots[id]
	if ok {
		delete(t.slots, id)
	}
	t.mu.Unlock()

	if ok {
		close(s)
	}
}

// Count returns the number of outstanding slots.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
