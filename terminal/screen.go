package terminal

import (
	"strings"
	"sync"

	"github.com/tonistiigi/vt100"
)

const (
	DefaultScreenRows = 200
	DefaultScreenCols = 120
)

// Screen replays replica lines on a virtual terminal so the child's in-place
// rewrites collapse to what an operator would have seen.
type Screen struct {
	mu   sync.Mutex
	term *vt100.VT100
}

// NewScreen creates a virtual terminal of the given size. Non-positive values
// fall back to DefaultScreenRows and DefaultScreenCols.
func NewScreen(rows, cols int) *Screen {
	if rows <= 0 {
		rows = DefaultScreenRows
	}
	if cols <= 0 {
		cols = DefaultScreenCols
	}
	return &Screen{term: vt100.NewVT100(rows, cols)}
}

// Write applies one replica line.
func (s *Screen) Write(replica string) {
	data := strings.ReplaceAll(replica, MarkerCursorUp, "\x1b[A")
	// The child wrote to a tty with onlcr; do the same translation.
	data = strings.ReplaceAll(data, "\n", "\r\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		// The emulator is not hardened against arbitrary input; a broken
		// replay must not take the session down with it.
		_ = recover()
	}()
	s.term.Write([]byte(data))
}

// String renders the visible screen, trailing blanks removed.
func (s *Screen) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]string, 0, len(s.term.Content))
	for _, row := range s.term.Content {
		rows = append(rows, strings.TrimRight(string(row), " \x00"))
	}
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	return strings.Join(rows, "\n")
}
