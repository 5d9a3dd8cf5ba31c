package hub

import (
	"github.com/manta-auv/hub/internal/logbook"
	"github.com/manta-auv/hub/internal/wire"
)

// router fans notifications out to subscribed sessions.
type router struct {
	reg *registry
	lb  *logbook.Logbook
}

// publish delivers NOTIFY IN to every authenticated session other than
// the publisher whose filter set admits the body. Each delivery goes
// through the target's own send queue; a session too slow to keep up
// is dropped instead of stalling the rest.
func (rt *router) publish(from *session, body string) {
	frame, err := wire.Encode(&wire.Message{Components: []string{wire.VerbNotify, "IN", body}})
	if err != nil {
		rt.lb.Logf("hub", logbook.Error, "cannot encode notification: %v", err)
		return
	}

	for _, s := range rt.reg.snapshot() {
		if s == from || !s.authenticated() || !s.wants(body) {
			continue
		}
		if !s.enqueue(frame) {
			rt.lb.Logf("hub", logbook.Warning, "client %s too slow for notifications, disconnecting", s.remote)
			s.abort()
		}
	}
}
