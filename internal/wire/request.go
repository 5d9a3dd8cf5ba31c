package wire

import (
	"errors"
	"strconv"
)

// Verb families occupying the first component of every message.
const (
	VerbComm   = "COMM"
	VerbNotify = "NOTIFY"
	VerbVar    = "VAR"
	VerbLog    = "LOG"
)

// ErrBadRequest reports a message that decoded cleanly but does not
// form a known request: unrecognized verb, wrong component count, or an
// unparsable argument. The hub drops these without a reply so that
// unknown future verbs stay forward-compatible.
var ErrBadRequest = errors.New("wire: unrecognized request")

// FilterKind enumerates the notification filter kinds carried on
// NOTIFY ADD_FILTER.
type FilterKind int

const (
	// FilterMatch delivers when the notification body equals the
	// pattern exactly.
	FilterMatch FilterKind = 1

	// FilterAction delivers when the body starts with the pattern.
	FilterAction FilterKind = 2

	// FilterPrefix delivers when the pattern matches a leading
	// whitespace-delimited prefix of the body.
	FilterPrefix FilterKind = 3
)

// Valid reports whether k is a known filter kind.
func (k FilterKind) Valid() bool {
	return k == FilterMatch || k == FilterAction || k == FilterPrefix
}

// Request is a decoded client request: one of the concrete request
// types below. Decoding happens once at the protocol boundary; all
// downstream dispatch matches on the variant.
type Request interface {
	isRequest()
}

// Auth carries COMM AUTH.
type Auth struct{ Password string }

// Shutdown carries COMM SHUTDOWN.
type Shutdown struct{}

// NotifyOut carries NOTIFY OUT.
type NotifyOut struct{ Body string }

// AddFilter carries NOTIFY ADD_FILTER.
type AddFilter struct {
	Kind    FilterKind
	Pattern string
}

// ClearFilters carries NOTIFY CLEAR_FILTERS.
type ClearFilters struct{}

// VarGet carries VAR GET.
type VarGet struct{ Name string }

// VarSet carries VAR SET.
type VarSet struct {
	Name  string
	Value float64
}

// Log carries a LOG submission. Severity is the numeric wire level.
type Log struct {
	Source   string
	Severity int
	Text     string
}

func (Auth) isRequest()         {}
func (Shutdown) isRequest()     {}
func (NotifyOut) isRequest()    {}
func (AddFilter) isRequest()    {}
func (ClearFilters) isRequest() {}
func (VarGet) isRequest()       {}
func (VarSet) isRequest()       {}
func (Log) isRequest()          {}

// ParseRequest interprets a decoded message as a typed request.
func ParseRequest(m *Message) (Request, error) {
	c := m.Components
	switch m.Verb() {
	case VerbComm:
		switch {
		case len(c) == 3 && c[1] == "AUTH":
			return Auth{Password: c[2]}, nil
		case len(c) == 2 && c[1] == "SHUTDOWN":
			return Shutdown{}, nil
		}

	case VerbNotify:
		switch {
		case len(c) == 3 && c[1] == "OUT":
			return NotifyOut{Body: c[2]}, nil
		case len(c) == 4 && c[1] == "ADD_FILTER":
			kind, err := strconv.Atoi(c[2])
			if err != nil || !FilterKind(kind).Valid() {
				return nil, ErrBadRequest
			}
			return AddFilter{Kind: FilterKind(kind), Pattern: c[3]}, nil
		case len(c) == 2 && c[1] == "CLEAR_FILTERS":
			return ClearFilters{}, nil
		}

	case VerbVar:
		switch {
		case len(c) == 3 && c[1] == "GET":
			return VarGet{Name: c[2]}, nil
		case len(c) == 4 && c[1] == "SET":
			value, err := strconv.ParseFloat(c[3], 64)
			if err != nil {
				return nil, ErrBadRequest
			}
			return VarSet{Name: c[2], Value: value}, nil
		}

	case VerbLog:
		if len(c) == 4 {
			severity, err := strconv.Atoi(c[2])
			if err != nil {
				return nil, ErrBadRequest
			}
			return Log{Source: c[1], Severity: severity, Text: c[3]}, nil
		}
	}
	return nil, ErrBadRequest
}

// FormatValue renders a variable value the way it travels on the wire:
// the shortest representation that round-trips the float.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
