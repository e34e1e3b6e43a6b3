// Package registry tracks which workstations currently have a live tunnel
// transport, and for how long a recently-lost one may still reattach.
package registry

import (
	"errors"
	"sync"
	"time"

	"tiflis-tunnel/internal/transport"
)

var (
	ErrDuplicate    = errors.New("workstation already registered")
	ErrCapacity     = errors.New("registry at capacity")
	ErrNotFound     = errors.New("workstation not found")
	ErrGraceExpired = errors.New("grace period expired")
)

// State is a workstation entry's connectivity state.
type State int

const (
	Active State = iota
	Reconnecting
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "reconnecting"
}

// Entry is a point-in-time snapshot of one workstation's registration.
type Entry struct {
	ID           string
	Transport    transport.Conn
	RegisteredAt time.Time
	State        State
	// Since is meaningful only when State == Reconnecting.
	Since time.Time
}

type record struct {
	transport    transport.Conn
	registeredAt time.Time
	state        State
	since        time.Time
}

// Registry is the process-wide workstation-id -> transport map. Reads
// (Get) may proceed concurrently with each other; writes are serialized
// behind a single exclusive section. The lock is held only across the
// map mutation itself, never across I/O.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*record
	capacity    int
	gracePeriod time.Duration
}

// New creates a Registry with the given capacity and reconnect grace
// period.
func New(capacity int, gracePeriod time.Duration) *Registry {
	return &Registry{
		entries:     make(map[string]*record),
		capacity:    capacity,
		gracePeriod: gracePeriod,
	}
}

// Register inserts a fresh Active entry for id. Fails with ErrDuplicate if
// an entry already exists, or ErrCapacity if the registry is full.
func (r *Registry) Register(id string, conn transport.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.capacity {
		return ErrCapacity
	}
	if _, ok := r.entries[id]; ok {
		return ErrDuplicate
	}

	r.entries[id] = &record{
		transport:    conn,
		registeredAt: time.Now(),
		state:        Active,
	}
	return nil
}

// Get returns a snapshot of the entry for id, or false if none exists.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		ID:           id,
		Transport:    rec.transport,
		RegisteredAt: rec.registeredAt,
		State:        rec.state,
		Since:        rec.since,
	}, true
}

// MarkReconnecting transitions id's entry (if any) into Reconnecting,
// recording now as the start of its grace window. Its dead transport
// handle is kept around for the duration of that window; it is never
// used again, but overwriting it is unnecessary complexity.
func (r *Registry) MarkReconnecting(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[id]
	if !ok {
		return
	}
	rec.state = Reconnecting
	rec.since = time.Now()
}

// Reconnect swaps in a new transport for id and marks it Active again, if
// the entry exists and is either Active or Reconnecting within its grace
// window. Otherwise returns ErrNotFound or ErrGraceExpired.
func (r *Registry) Reconnect(id string, conn transport.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}

	if rec.state == Reconnecting && time.Since(rec.since) > r.gracePeriod {
		return ErrGraceExpired
	}

	rec.transport = conn
	rec.state = Active
	rec.since = time.Time{}
	return nil
}

// Unregister removes id's entry unconditionally. Reserved for clean
// shutdown; the transport-loss path uses MarkReconnecting instead so the
// agent gets a grace window to reattach.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Count returns the current number of entries (Active and Reconnecting).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CleanupExpired removes every entry whose Reconnecting grace window has
// elapsed.
func (r *Registry) CleanupExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, rec := range r.entries {
		if rec.state == Reconnecting && now.Sub(rec.since) > r.gracePeriod {
			delete(r.entries, id)
		}
	}
}
