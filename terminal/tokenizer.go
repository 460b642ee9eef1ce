// Package terminal turns the raw byte stream of a child process that redraws
// its terminal in place into logical lines.
//
// ddrescue rewrites its status block with two conventions: a carriage return
// to restart the current line and the CSI "cursor up" sequence (ESC [ A) to
// move to the previous line. The Tokenizer splits the stream on line
// terminators and produces, for every line, a tidy text suitable for parsing
// and a replica that keeps the in-place rewrites as markers, so a display can
// reproduce the child's screen (see Screen).
package terminal

import (
	"errors"
	"io"
	"strings"
	"syscall"
)

const (
	// MarkerCarriageReturn in a replica means "continue writing from the start
	// of the current line".
	MarkerCarriageReturn = "\r"
	// MarkerCursorUp in a replica means "move up one line before the next write".
	MarkerCursorUp = "¬"

	// DefaultMaxEmptyReads is how many consecutive zero-byte reads end the stream.
	DefaultMaxEmptyReads = 10

	defaultReadSize = 4096
	esc             = 0x1b
)

// Line is one logical line of child output.
type Line struct {
	// Text has terminators and escape sequences removed.
	Text string
	// Replica is the raw line with its terminator, cursor up sequences
	// replaced by MarkerCursorUp.
	Replica string
}

// Tokenizer reads a byte stream and splits it into Lines. It is a one-pass,
// non-restartable sequence, used like bufio.Scanner:
//
//	tok := terminal.NewTokenizer(r)
//	for tok.Scan() {
//	    line := tok.Line()
//	}
//	if err := tok.Err(); err != nil {
//	    ...
//	}
type Tokenizer struct {
	r             io.Reader
	buf           []byte
	maxEmptyReads int

	text    strings.Builder
	replica strings.Builder
	// pending holds an escape sequence that has not been terminated yet,
	// possibly spanning two reads.
	pending []byte
	// lastCR is set when the previous terminator was '\r', so that a
	// following '\n' completes the same line.
	lastCR bool

	queue []Line
	line  Line
	done  bool
	err   error
}

// TokenizerOption configures a Tokenizer.
type TokenizerOption func(*Tokenizer)

// WithReadSize sets how many bytes are requested per read. A size of 1
// reproduces byte-at-a-time consumption.
func WithReadSize(n int) TokenizerOption {
	return func(t *Tokenizer) {
		if n > 0 {
			t.buf = make([]byte, n)
		}
	}
}

// WithMaxEmptyReads bounds the number of consecutive empty reads tolerated
// while draining before the stream is considered finished.
func WithMaxEmptyReads(n int) TokenizerOption {
	return func(t *Tokenizer) {
		if n > 0 {
			t.maxEmptyReads = n
		}
	}
}

// NewTokenizer creates a Tokenizer over r.
func NewTokenizer(r io.Reader, opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{
		r:             r,
		buf:           make([]byte, defaultReadSize),
		maxEmptyReads: DefaultMaxEmptyReads,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Scan advances to the next line. It returns false when the stream has ended
// and every buffered byte has been emitted, or on a read error.
func (t *Tokenizer) Scan() bool {
	empty := 0
	for len(t.queue) == 0 {
		if t.done {
			return false
		}
		n, err := t.r.Read(t.buf)
		if n > 0 {
			empty = 0
			t.feed(t.buf[:n])
		}
		switch {
		case err != nil:
			if !isEndOfStream(err) {
				t.err = err
			}
			t.finish()
		case n == 0:
			empty++
			if empty >= t.maxEmptyReads {
				t.finish()
			}
		}
	}
	t.line = t.queue[0]
	t.queue = t.queue[1:]
	return true
}

// Line returns the line produced by the last call to Scan.
func (t *Tokenizer) Line() Line {
	return t.line
}

// Err returns the first non end-of-stream error encountered.
func (t *Tokenizer) Err() error {
	return t.err
}

// isEndOfStream treats EIO as EOF: reading a pty master after the child has
// exited returns EIO on Linux.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, io.ErrClosedPipe)
}

func (t *Tokenizer) feed(p []byte) {
	for _, b := range p {
		if len(t.pending) > 0 {
			if b != '\r' && b != '\n' {
				t.pending = append(t.pending, b)
				t.escape()
				continue
			}
			// A terminator inside a sequence means it was truncated: keep
			// the bytes in the replica and end the line as usual.
			t.replica.Write(t.pending)
			t.pending = t.pending[:0]
		}
		switch b {
		case esc:
			t.pending = append(t.pending, b)
			t.lastCR = false
		case '\n':
			if t.lastCR && t.text.Len() == 0 && t.replica.Len() == 0 {
				// "\r\n": the line was already emitted at '\r'; attach the
				// newline to the previous replica.
				t.lastCR = false
				if n := len(t.queue); n > 0 {
					t.queue[n-1].Replica += "\n"
				} else {
					t.queue = append(t.queue, Line{Replica: "\n"})
				}
				continue
			}
			t.replica.WriteByte('\n')
			t.emit()
		case '\r':
			t.replica.WriteString(MarkerCarriageReturn)
			t.emit()
			t.lastCR = true
		default:
			t.lastCR = false
			t.text.WriteByte(b)
			t.replica.WriteByte(b)
		}
	}
}

// escape consumes t.pending once it holds a complete sequence.
func (t *Tokenizer) escape() {
	seq := t.pending
	if len(seq) == 2 && seq[1] != '[' {
		// Two-byte escape (ESC x): keep it in the replica only.
		t.replica.Write(seq)
		t.pending = t.pending[:0]
		return
	}
	if len(seq) < 3 {
		return
	}
	final := seq[len(seq)-1]
	if final < 0x40 || final > 0x7e {
		// Parameter or intermediate byte, sequence continues.
		return
	}
	if string(seq) == "\x1b[A" {
		t.replica.WriteString(MarkerCursorUp)
	} else {
		t.replica.Write(seq)
	}
	t.pending = t.pending[:0]
}

func (t *Tokenizer) emit() {
	t.queue = append(t.queue, Line{Text: t.text.String(), Replica: t.replica.String()})
	t.text.Reset()
	t.replica.Reset()
}

// finish flushes a trailing line that has no terminator.
func (t *Tokenizer) finish() {
	t.done = true
	if len(t.pending) > 0 {
		t.replica.Write(t.pending)
		t.pending = nil
	}
	if t.text.Len() > 0 || t.replica.Len() > 0 {
		t.emit()
	}
}
