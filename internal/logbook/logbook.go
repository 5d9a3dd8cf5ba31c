// Package logbook is the hub's central log sink. Every log line,
// whether submitted by a client over the wire or produced by the hub
// itself, carries a named source and a severity, and is written to
// stdout or a log file, and optionally journaled to SQLite.
package logbook

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Level is a log severity. Wire values are the numeric levels 0-5.
type Level int

const (
	Debug Level = iota
	Info
	Normal
	Warning
	Error
	Critical
)

var levelNames = [...]string{"DEBUG", "INFO", "NORMAL", "WARNING", "ERROR", "CRITICAL"}

func (l Level) String() string {
	if l < Debug || l > Critical {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the defined severities.
func (l Level) Valid() bool {
	return l >= Debug && l <= Critical
}

// ParseLevel resolves a severity by its configuration name.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(name, n) {
			return Level(i), nil
		}
	}
	return Normal, fmt.Errorf("logbook: unknown level %q", name)
}

// Options configures a Logbook.
type Options struct {
	// Threshold is the minimum severity recorded; lower lines are dropped.
	Threshold Level

	// File appends lines to the named file. Empty means stdout only.
	File string

	// ReplicateStdout mirrors file-bound lines to stdout as well.
	ReplicateStdout bool

	// JournalPath enables the SQLite journal at the given path.
	JournalPath string
}

// Logbook writes log lines to the configured outputs. Safe for
// concurrent use; Close is idempotent.
type Logbook struct {
	threshold Level

	mu      sync.Mutex
	file    *os.File     // nil when logging to stdout only
	mirror  bool         // replicate file lines to stdout
	journal *sqlite.Conn // nil when the journal is disabled
	closed  bool
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS log (
	at      INTEGER NOT NULL,
	source  TEXT NOT NULL,
	level   INTEGER NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS log_at ON log (at);
`

// Open creates the logbook, opening the log file and journal as
// configured. A file or journal that cannot be opened is an error; the
// caller decides whether that is fatal.
func Open(opts Options) (*Logbook, error) {
	lb := &Logbook{
		threshold: opts.Threshold,
		mirror:    opts.ReplicateStdout,
	}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logbook: opening log file: %w", err)
		}
		lb.file = f
	}

	if opts.JournalPath != "" {
		conn, err := sqlite.OpenConn(opts.JournalPath, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenWAL)
		if err != nil {
			lb.closeFile()
			return nil, fmt.Errorf("logbook: opening journal: %w", err)
		}
		if err := sqlitex.ExecuteScript(conn, journalSchema, nil); err != nil {
			conn.Close()
			lb.closeFile()
			return nil, fmt.Errorf("logbook: creating journal schema: %w", err)
		}
		lb.journal = conn
	}

	return lb, nil
}

// Log records one line from the named source at the given severity.
func (lb *Logbook) Log(source string, level Level, message string) {
	if level < lb.threshold {
		return
	}

	now := time.Now()
	line := fmt.Sprintf("[%s][%s][%s] %s\n", now.Format("15:04:05"), source, level, message)

	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.closed {
		return
	}

	if lb.file != nil {
		lb.file.WriteString(line)
		if lb.mirror {
			os.Stdout.WriteString(line)
		}
	} else {
		os.Stdout.WriteString(line)
	}

	if lb.journal != nil {
		err := sqlitex.Execute(lb.journal, "INSERT INTO log (at, source, level, message) VALUES (?, ?, ?, ?)", &sqlitex.ExecOptions{
			Args: []any{now.UnixMilli(), source, int(level), message},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "logbook: journal write failed: %v\n", err)
		}
	}
}

// Logf is Log with formatting.
func (lb *Logbook) Logf(source string, level Level, format string, args ...any) {
	if level < lb.threshold {
		return
	}
	lb.Log(source, level, fmt.Sprintf(format, args...))
}

// Close flushes and releases the outputs. Later Log calls are dropped.
func (lb *Logbook) Close() error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.closed {
		return nil
	}
	lb.closed = true

	var first error
	if lb.file != nil {
		if err := lb.file.Close(); err != nil {
			first = err
		}
		lb.file = nil
	}
	if lb.journal != nil {
		if err := lb.journal.Close(); err != nil && first == nil {
			first = err
		}
		lb.journal = nil
	}
	return first
}

func (lb *Logbook) closeFile() {
	if lb.file != nil {
		lb.file.Close()
		lb.file = nil
	}
}
