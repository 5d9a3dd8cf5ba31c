package hub

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manta-auv/hub/internal/wire"
)

const (
	// sendBuffer is the per-session outbound queue depth. A session
	// that falls this far behind is disconnected rather than allowed
	// to stall fan-out to others.
	sendBuffer = 64

	writeTimeout = 10 * time.Second
)

const (
	stateUnauthenticated int32 = iota
	stateAuthenticated
	stateClosed
)

type filter struct {
	kind    wire.FilterKind
	pattern string
}

// session is one client connection. The read loop is the only reader
// of the socket; all writes go through the send queue and writePump so
// frames from the reply path and the publish path never interleave.
type session struct {
	conn   net.Conn
	remote string

	state atomic.Int32

	// send carries encoded frames to the writePump. A nil frame tells
	// the pump to close the connection after draining what precedes it.
	send chan []byte
	done chan struct{}
	once sync.Once

	filterMu sync.RWMutex
	filters  []filter
}

func newSession(conn net.Conn) *session {
	return &session{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (s *session) authenticated() bool {
	return s.state.Load() == stateAuthenticated
}

func (s *session) setAuthenticated() {
	s.state.CompareAndSwap(stateUnauthenticated, stateAuthenticated)
}

// writePump serializes all socket writes for the session.
func (s *session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			if frame == nil {
				s.abort()
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := s.conn.Write(frame); err != nil {
				s.abort()
				return
			}
		}
	}
}

// enqueue hands a frame to the writePump without blocking. It reports
// false when the session is closed or its queue is full.
func (s *session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// finish delivers a final frame, then closes the connection once the
// pump has drained it. Used for graceful close and kicks.
func (s *session) finish(final []byte) {
	if final != nil && !s.enqueue(final) {
		s.abort()
		return
	}
	if !s.enqueue(nil) {
		s.abort()
	}
}

// abort tears the session down immediately: pending frames are
// dropped, the socket is closed, and the filter set is cleared.
func (s *session) abort() {
	s.once.Do(func() {
		s.state.Store(stateClosed)
		close(s.done)
		s.conn.Close()
		s.clearFilters()
	})
}

func (s *session) addFilter(kind wire.FilterKind, pattern string) {
	s.filterMu.Lock()
	s.filters = append(s.filters, filter{kind: kind, pattern: pattern})
	s.filterMu.Unlock()
}

func (s *session) clearFilters() {
	s.filterMu.Lock()
	s.filters = nil
	s.filterMu.Unlock()
}

// wants reports whether a notification body passes the session's
// filter set. A session with no filters receives everything; otherwise
// any one matching filter admits the body.
func (s *session) wants(body string) bool {
	s.filterMu.RLock()
	defer s.filterMu.RUnlock()

	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		switch f.kind {
		case wire.FilterMatch:
			if body == f.pattern {
				return true
			}
		case wire.FilterAction:
			if strings.HasPrefix(body, f.pattern) {
				return true
			}
		case wire.FilterPrefix:
			if strings.HasPrefix(body, f.pattern) &&
				(len(body) == len(f.pattern) || body[len(f.pattern)] == ' ') {
				return true
			}
		}
	}
	return false
}
