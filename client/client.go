// Package client is the Go client library for the hub: it dials the
// hub, authenticates, and exposes typed access to shared variables,
// notifications, and central logging over a single connection.
//
// A Conn is safe for concurrent use. Replies are correlated to
// requests by request id, so multiple goroutines can issue requests at
// once; notifications arrive independently on Notifications().
package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/manta-auv/hub/internal/logbook"
	"github.com/manta-auv/hub/internal/wire"
)

// ErrClosed is returned from calls made after the connection ended,
// either locally via Close or because the hub announced it was
// closing.
var ErrClosed = errors.New("client: connection closed")

// ErrAuthFailed is returned by Dial when the hub rejects the password.
var ErrAuthFailed = errors.New("client: authentication failed")

// KickedError reports that the hub terminated the session, carrying
// the reason from the COMM KICKING frame.
type KickedError struct {
	Reason string
}

func (e *KickedError) Error() string {
	return fmt.Sprintf("client: kicked by hub: %s", e.Reason)
}

// Options configures Dial. Addr and Password are required.
type Options struct {
	Addr     string
	Password string

	// DialTimeout bounds the TCP connect. Zero means 10 seconds.
	DialTimeout time.Duration

	// NotifyBuffer is the capacity of the Notifications channel.
	// Notifications arriving while it is full are dropped. Zero means
	// 64.
	NotifyBuffer int
}

// Conn is one authenticated session with the hub.
type Conn struct {
	conn net.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint16
	pending map[uint16]chan *wire.Message
	err     error

	notifications chan string
	done          chan struct{}
	once          sync.Once
}

// Dial connects and authenticates. On return the session is ready for
// requests and is already receiving notifications.
func Dial(opts Options) (*Conn, error) {
	timeout := opts.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	buffer := opts.NotifyBuffer
	if buffer == 0 {
		buffer = 64
	}

	nc, err := net.DialTimeout("tcp", opts.Addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}

	c := &Conn{
		conn:          nc,
		nextID:        1,
		pending:       make(map[uint16]chan *wire.Message),
		notifications: make(chan string, buffer),
		done:          make(chan struct{}),
	}
	go c.receiveLoop()

	reply, err := c.roundTrip(wire.VerbComm, "AUTH", opts.Password)
	if err != nil {
		c.Close()
		return nil, err
	}
	if len(reply.Components) < 2 || reply.Components[1] != "SUCCESS" {
		c.Close()
		return nil, ErrAuthFailed
	}
	return c, nil
}

// Notifications delivers the bodies of NOTIFY IN frames, in arrival
// order. The channel is closed when the connection ends.
func (c *Conn) Notifications() <-chan string {
	return c.notifications
}

// Close tears the connection down. It is safe to call more than once.
func (c *Conn) Close() error {
	c.fail(ErrClosed)
	return nil
}

// Err reports why the connection ended, or nil while it is live.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// GetVar fetches a shared variable's current value and whether it is
// read-only.
func (c *Conn) GetVar(name string) (value float64, readonly bool, err error) {
	reply, err := c.roundTrip(wire.VerbVar, "GET", name)
	if err != nil {
		return 0, false, err
	}
	if len(reply.Components) != 4 || reply.Components[0] != wire.VerbVar || reply.Components[1] != "VALUE" {
		return 0, false, fmt.Errorf("client: unexpected reply %v", reply.Components)
	}
	value, err = strconv.ParseFloat(reply.Components[3], 64)
	if err != nil {
		return 0, false, fmt.Errorf("client: unexpected value %q", reply.Components[3])
	}
	return value, reply.Components[2] == "RO", nil
}

// SetVar writes a shared variable. The hub does not acknowledge a
// successful set; an invalid set terminates the session, surfacing as
// a KickedError on the next call.
func (c *Conn) SetVar(name string, value float64) error {
	return c.send(0, wire.VerbVar, "SET", name, wire.FormatValue(value))
}

// Notify broadcasts a notification to every other interested client.
func (c *Conn) Notify(body string) error {
	return c.send(0, wire.VerbNotify, "OUT", body)
}

// AddFilter narrows which notifications the hub delivers to this
// session. A session with no filters receives everything.
func (c *Conn) AddFilter(kind wire.FilterKind, pattern string) error {
	return c.send(0, wire.VerbNotify, "ADD_FILTER", strconv.Itoa(int(kind)), pattern)
}

// ClearFilters restores delivery of all notifications.
func (c *Conn) ClearFilters() error {
	return c.send(0, wire.VerbNotify, "CLEAR_FILTERS")
}

// Log submits a message to the hub's central logbook.
func (c *Conn) Log(source string, level logbook.Level, message string) error {
	return c.send(0, wire.VerbLog, source, strconv.Itoa(int(level)), message)
}

// Shutdown asks the hub to close this session gracefully and waits for
// the connection to end.
func (c *Conn) Shutdown() error {
	if err := c.send(0, wire.VerbComm, "SHUTDOWN"); err != nil {
		return err
	}
	<-c.done
	return nil
}

func (c *Conn) send(id uint16, components ...string) error {
	select {
	case <-c.done:
		return c.Err()
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	err := wire.Write(c.conn, &wire.Message{RequestID: id, Components: components})
	if err != nil {
		c.fail(fmt.Errorf("client: write: %w", err))
		return c.Err()
	}
	return nil
}

// roundTrip sends a request under a fresh id and waits for the
// matching reply.
func (c *Conn) roundTrip(components ...string) (*wire.Message, error) {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	id := c.nextID
	c.nextID++
	if c.nextID == 0 { // id 0 is reserved for unsolicited frames
		c.nextID = 1
	}
	ch := make(chan *wire.Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(id, components...); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-c.done:
		return nil, c.Err()
	}
}

func (c *Conn) receiveLoop() {
	// Sole sender on notifications, and therefore its only closer.
	defer close(c.notifications)

	r := bufio.NewReader(c.conn)
	for {
		m, err := wire.Read(r)
		if err != nil {
			c.fail(fmt.Errorf("client: read: %w", err))
			return
		}

		switch m.Verb() {
		case wire.VerbNotify:
			if len(m.Components) == 3 && m.Components[1] == "IN" {
				select {
				case c.notifications <- m.Components[2]:
				default: // receiver not keeping up
				}
			}
		case wire.VerbComm:
			switch {
			case len(m.Components) >= 3 && m.Components[1] == "KICKING":
				c.fail(&KickedError{Reason: m.Components[2]})
				return
			case len(m.Components) >= 2 && m.Components[1] == "CLOSING":
				c.fail(ErrClosed)
				return
			default:
				c.deliver(m)
			}
		default:
			c.deliver(m)
		}
	}
}

func (c *Conn) deliver(m *wire.Message) {
	c.mu.Lock()
	ch, ok := c.pending[m.RequestID]
	if ok {
		delete(c.pending, m.RequestID)
	}
	c.mu.Unlock()
	if ok {
		ch <- m
	}
}

// fail records the first terminal error and releases every waiter.
func (c *Conn) fail(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.pending = nil
		c.mu.Unlock()
		close(c.done)
		c.conn.Close()
	})
}
