package hub

import (
	"errors"
	"fmt"

	"github.com/manta-auv/hub/internal/logbook"
	"github.com/manta-auv/hub/internal/vars"
	"github.com/manta-auv/hub/internal/wire"
)

// verdict is the outcome of dispatching one message: an optional reply
// to the sender, and at most one of kick or graceful close. A zero
// verdict means silence, the forward-compatible answer to anything
// the hub does not recognize.
type verdict struct {
	reply      *wire.Message
	kickReason string
	close      bool
}

type dispatcher struct {
	password string
	store    *vars.Store
	router   *router
	lb       *logbook.Logbook
}

// dispatch executes one decoded message against the hub's state.
// Session control is admitted in any state; everything else requires
// an authenticated session and is otherwise dropped without reply.
func (d *dispatcher) dispatch(s *session, m *wire.Message) verdict {
	req, err := wire.ParseRequest(m)
	if err != nil {
		return verdict{}
	}

	switch r := req.(type) {
	case wire.Auth:
		return d.auth(s, m.RequestID, r.Password)
	case wire.Shutdown:
		return verdict{close: true}
	}

	if !s.authenticated() {
		return verdict{}
	}

	switch r := req.(type) {
	case wire.NotifyOut:
		d.router.publish(s, r.Body)
	case wire.AddFilter:
		s.addFilter(r.Kind, r.Pattern)
	case wire.ClearFilters:
		s.clearFilters()
	case wire.VarGet:
		return d.varGet(m.RequestID, r.Name)
	case wire.VarSet:
		return d.varSet(r)
	case wire.Log:
		level := logbook.Level(r.Severity)
		if level.Valid() {
			d.lb.Log(r.Source, level, r.Text)
		}
	}
	return verdict{}
}

func (d *dispatcher) auth(s *session, id uint16, password string) verdict {
	if d.password == "" {
		d.lb.Log("hub", logbook.Error, "no password configured, refusing to authenticate clients")
		return verdict{}
	}
	if password != d.password {
		return verdict{
			reply:      &wire.Message{RequestID: id, Components: []string{wire.VerbComm, "FAILURE"}},
			kickReason: "authentication failure",
		}
	}
	s.setAuthenticated()
	return verdict{reply: &wire.Message{RequestID: id, Components: []string{wire.VerbComm, "SUCCESS"}}}
}

func (d *dispatcher) varGet(id uint16, name string) verdict {
	value, readonly, err := d.store.Get(name)
	if err != nil {
		d.lb.Logf("hub", logbook.Error, "get attempted on nonexistent variable %q", name)
		return verdict{kickReason: fmt.Sprintf("invalid variable access (%s)", name)}
	}

	mode := "RW"
	if readonly {
		mode = "RO"
	}
	return verdict{reply: &wire.Message{
		RequestID:  id,
		Components: []string{wire.VerbVar, "VALUE", mode, wire.FormatValue(value)},
	}}
}

func (d *dispatcher) varSet(r wire.VarSet) verdict {
	err := d.store.Set(r.Name, r.Value)
	switch {
	case err == nil:
		return verdict{}
	case errors.Is(err, vars.ErrNotFound):
		d.lb.Logf("hub", logbook.Error, "set attempted on nonexistent variable %q", r.Name)
	case errors.Is(err, vars.ErrReadOnly):
		d.lb.Logf("hub", logbook.Error, "set attempted on read-only variable %q", r.Name)
	}
	return verdict{kickReason: fmt.Sprintf("invalid variable access (%s)", r.Name)}
}
