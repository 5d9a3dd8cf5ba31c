package hub

import "sync"

// registry is the authoritative set of live sessions, consulted under
// its own lock for add, remove, and fan-out snapshots.
type registry struct {
	mu       sync.RWMutex
	sessions map[*session]struct{}
	max      int
	closed   bool
}

func newRegistry(max int) *registry {
	return &registry{
		sessions: make(map[*session]struct{}),
		max:      max,
	}
}

// add registers a session, refusing when the client limit is reached
// or the registry has already been closed for shutdown.
func (r *registry) add(s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.sessions) >= r.max {
		return false
	}
	r.sessions[s] = struct{}{}
	return true
}

func (r *registry) remove(s *session) {
	r.mu.Lock()
	delete(r.sessions, s)
	r.mu.Unlock()
}

// snapshot returns the live sessions at a point in time. Fan-out
// iterates the snapshot so a slow write never holds the registry lock.
func (r *registry) snapshot() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// close marks the registry closed to new sessions and returns the
// final membership, atomically, so shutdown cannot miss a session that
// raced the accept loop.
func (r *registry) close() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	out := make([]*session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
