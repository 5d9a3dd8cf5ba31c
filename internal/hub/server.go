// Package hub implements the broker itself: the connection manager,
// per-client sessions, message dispatch, and notification fan-out.
package hub

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/manta-auv/hub/internal/config"
	"github.com/manta-auv/hub/internal/logbook"
	"github.com/manta-auv/hub/internal/vars"
	"github.com/manta-auv/hub/internal/wire"
)

// Server accepts client connections and runs one session per
// connection. It owns the live-session registry and the idempotent
// shutdown sequence.
type Server struct {
	addr   string
	lb     *logbook.Logbook
	store  *vars.Store
	reg    *registry
	router *router
	disp   *dispatcher

	ln       net.Listener
	done     chan struct{} // closed when shutdown begins
	finished chan struct{} // closed when the shutdown sequence completes
	closing  sync.Once
	wg       sync.WaitGroup
}

// New wires a server from its subsystems. The server assumes ownership
// of the logbook: it is closed at the end of the shutdown sequence.
func New(cfg *config.Config, store *vars.Store, lb *logbook.Logbook) *Server {
	reg := newRegistry(cfg.Server.MaxClients)
	rt := &router{reg: reg, lb: lb}
	return &Server{
		addr:     cfg.Addr(),
		lb:       lb,
		store:    store,
		reg:      reg,
		router:   rt,
		disp:     &dispatcher{password: cfg.Server.Password, store: store, router: rt, lb: lb},
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Listen binds the server socket without accepting yet. Serve calls it
// implicitly when needed; tests use it to learn the bound address.
func (srv *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", srv.addr)
	if err != nil {
		return nil, fmt.Errorf("hub: listen: %w", err)
	}
	srv.ln = ln
	return ln.Addr(), nil
}

// Serve accepts connections until ctx is canceled or Shutdown is
// called, then returns after running the shutdown sequence.
func (srv *Server) Serve(ctx context.Context) error {
	if srv.ln == nil {
		if _, err := srv.Listen(); err != nil {
			return err
		}
	}
	srv.lb.Logf("hub", logbook.Info, "accepting client connections on %s", srv.ln.Addr())

	go func() {
		select {
		case <-ctx.Done():
			srv.Shutdown()
		case <-srv.done:
		}
	}()

	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			select {
			case <-srv.done:
				<-srv.finished
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			srv.lb.Logf("hub", logbook.Error, "accept failed, continuing: %v", err)
			continue
		}
		srv.attach(conn)
	}
}

func (srv *Server) attach(conn net.Conn) {
	s := newSession(conn)
	if !srv.reg.add(s) {
		srv.lb.Logf("hub", logbook.Error, "refusing connection from %s: client limit reached or hub closing", conn.RemoteAddr())
		conn.Close()
		return
	}
	srv.lb.Logf("hub", logbook.Debug, "accepted client connection from %s", s.remote)

	srv.wg.Add(2)
	go func() {
		defer srv.wg.Done()
		s.writePump()
	}()
	go func() {
		defer srv.wg.Done()
		srv.readLoop(s)
	}()
}

// readLoop drives one session: read a frame, dispatch it, apply the
// verdict. Any protocol or transport failure is contained to this
// session.
func (srv *Server) readLoop(s *session) {
	defer func() {
		s.abort()
		srv.reg.remove(s)
		srv.lb.Logf("hub", logbook.Debug, "client %s disconnected", s.remote)
	}()

	r := bufio.NewReader(s.conn)
	for {
		m, err := wire.Read(r)
		if err != nil {
			if errors.Is(err, wire.ErrMalformed) {
				srv.lb.Logf("hub", logbook.Error, "malformed frame from %s, closing connection", s.remote)
			}
			return
		}

		v := srv.disp.dispatch(s, m)

		if v.reply != nil {
			frame, err := wire.Encode(v.reply)
			if err != nil || !s.enqueue(frame) {
				return
			}
		}
		switch {
		case v.kickReason != "":
			srv.kick(s, v.kickReason)
			<-s.done
			return
		case v.close:
			srv.lb.Logf("hub", logbook.Info, "shutting down client %s", s.remote)
			s.finish(serverFrame("CLOSING"))
			<-s.done
			return
		}
	}
}

func (srv *Server) kick(s *session, reason string) {
	srv.lb.Logf("hub", logbook.Info, "kicking client %s: %s", s.remote, reason)
	frame, _ := wire.Encode(&wire.Message{Components: []string{wire.VerbComm, "KICKING", reason}})
	s.finish(frame)
}

func serverFrame(what string) []byte {
	frame, _ := wire.Encode(&wire.Message{Components: []string{wire.VerbComm, what}})
	return frame
}

// Shutdown runs the close sequence exactly once: stop accepting, close
// the variable store, drain the registry (kicking every live session),
// then close the log sink. Concurrent and repeated calls are safe and
// all return once the sequence has completed.
func (srv *Server) Shutdown() {
	srv.closing.Do(func() {
		defer close(srv.finished)

		srv.lb.Log("hub", logbook.Info, "closing")
		close(srv.done)
		if srv.ln != nil {
			srv.ln.Close()
		}

		srv.lb.Logf("hub", logbook.Debug, "variable store closed (%d variables)", srv.store.Len())

		frame, _ := wire.Encode(&wire.Message{Components: []string{wire.VerbComm, "KICKING", "hub closing"}})
		for _, s := range srv.reg.close() {
			s.finish(frame)
		}
		srv.wg.Wait()

		srv.lb.Close()
	})
	<-srv.finished
}

// ClientCount reports the number of live sessions.
func (srv *Server) ClientCount() int {
	return srv.reg.count()
}
