// Package wire implements the hub's framed message protocol: a fixed
// binary frame carrying an ordered list of string components, plus the
// parsing of raw messages into typed requests.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout: a 6-byte big-endian header (payload length, request id,
// component count) followed by the components, each NUL-terminated.
const (
	headerLen = 6

	// MaxPayload is the largest encodable payload; it falls out of the
	// 16-bit length field in the frame header.
	MaxPayload = 0xffff
)

// ErrMalformed reports a frame that cannot be decoded. The connection
// that produced it cannot be trusted to be frame-aligned afterwards, so
// callers must treat it as fatal for that connection.
var ErrMalformed = errors.New("wire: malformed frame")

// Message is one hub protocol message. Components[0] is the verb
// family. RequestID correlates a reply to the request that produced it;
// zero means unsolicited.
type Message struct {
	RequestID  uint16
	Components []string
}

// Verb returns the verb family of the message (the first component).
func (m *Message) Verb() string {
	if len(m.Components) == 0 {
		return ""
	}
	return m.Components[0]
}

// Encode packs the message into its wire frame.
func Encode(m *Message) ([]byte, error) {
	if len(m.Components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrMalformed)
	}

	payload := 0
	for _, c := range m.Components {
		payload += len(c) + 1
	}
	if payload > MaxPayload {
		return nil, fmt.Errorf("%w: payload %d exceeds %d bytes", ErrMalformed, payload, MaxPayload)
	}

	buf := make([]byte, headerLen, headerLen+payload)
	binary.BigEndian.PutUint16(buf[0:2], uint16(payload))
	binary.BigEndian.PutUint16(buf[2:4], m.RequestID)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(m.Components)))
	for _, c := range m.Components {
		buf = append(buf, c...)
		buf = append(buf, 0)
	}
	return buf, nil
}

// Write encodes the message and writes the frame to w.
func Write(w io.Writer, m *Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Read reads exactly one frame from r and decodes it. An io error is
// returned as-is; a frame that parses to fewer than one component, or
// whose payload does not match its declared shape, returns ErrMalformed.
func Read(r io.Reader) (*Message, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[0:2])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	count := int(binary.BigEndian.Uint16(header[4:6]))
	if count == 0 {
		return nil, fmt.Errorf("%w: zero components", ErrMalformed)
	}

	m := &Message{
		RequestID:  binary.BigEndian.Uint16(header[2:4]),
		Components: make([]string, 0, count),
	}
	for i := 0; i < count; i++ {
		end := -1
		for j, b := range payload {
			if b == 0 {
				end = j
				break
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated component %d", ErrMalformed, i)
		}
		m.Components = append(m.Components, string(payload[:end]))
		payload = payload[end+1:]
	}
	if len(payload) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(payload))
	}
	return m, nil
}
