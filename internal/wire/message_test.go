package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"single component", Message{Components: []string{"COMM"}}},
		{"auth", Message{RequestID: 7, Components: []string{"COMM", "AUTH", "secret"}}},
		{"empty component", Message{Components: []string{"NOTIFY", "OUT", ""}}},
		{"max request id", Message{RequestID: 0xffff, Components: []string{"VAR", "GET", "depth"}}},
		{"utf8 body", Message{Components: []string{"LOG", "helm", "2", "heading 45°"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(&tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			got, err := Read(bytes.NewReader(frame))
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.RequestID != tt.msg.RequestID {
				t.Errorf("request id: got %d, want %d", got.RequestID, tt.msg.RequestID)
			}
			if len(got.Components) != len(tt.msg.Components) {
				t.Fatalf("component count: got %d, want %d", len(got.Components), len(tt.msg.Components))
			}
			for i := range got.Components {
				if got.Components[i] != tt.msg.Components[i] {
					t.Errorf("component %d: got %q, want %q", i, got.Components[i], tt.msg.Components[i])
				}
			}
		})
	}
}

func TestEncodeRejectsEmptyMessage(t *testing.T) {
	if _, err := Encode(&Message{}); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	big := make([]byte, MaxPayload)
	for i := range big {
		big[i] = 'x'
	}
	_, err := Encode(&Message{Components: []string{"NOTIFY", "OUT", string(big)}})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestReadMalformedFrames(t *testing.T) {
	// A valid frame to corrupt: COMM SHUTDOWN.
	valid, err := Encode(&Message{Components: []string{"COMM", "SHUTDOWN"}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
	}{
		{"zero component count", func(b []byte) []byte {
			b[4], b[5] = 0, 0
			return b
		}},
		{"count exceeds payload", func(b []byte) []byte {
			b[5] = 9
			return b
		}},
		{"trailing bytes", func(b []byte) []byte {
			b[5] = 1
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := tt.corrupt(append([]byte(nil), valid...))
			if _, err := Read(bytes.NewReader(frame)); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestReadShortFrame(t *testing.T) {
	frame, err := Encode(&Message{Components: []string{"COMM", "SHUTDOWN"}})
	if err != nil {
		t.Fatal(err)
	}

	for cut := 1; cut < len(frame); cut++ {
		if _, err := Read(bytes.NewReader(frame[:cut])); err == nil {
			t.Errorf("truncation at %d bytes: expected error", cut)
		}
	}
}

func TestReadEOF(t *testing.T) {
	if _, err := Read(bytes.NewReader(nil)); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReadConsumesExactlyOneFrame(t *testing.T) {
	var buf bytes.Buffer
	first := &Message{RequestID: 1, Components: []string{"VAR", "GET", "depth"}}
	second := &Message{RequestID: 2, Components: []string{"COMM", "SHUTDOWN"}}
	if err := Write(&buf, first); err != nil {
		t.Fatal(err)
	}
	if err := Write(&buf, second); err != nil {
		t.Fatal(err)
	}

	for _, want := range []*Message{first, second} {
		got, err := Read(&buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if got.RequestID != want.RequestID {
			t.Errorf("request id: got %d, want %d", got.RequestID, want.RequestID)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("expected buffer drained, %d bytes left", buf.Len())
	}
}
