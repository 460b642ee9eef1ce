package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreen_CarriageReturnOverwrites(t *testing.T) {
	s := NewScreen(10, 40)
	s.Write("rescued: 10 MB")
	s.Write("\r")
	s.Write("rescued: 20 MB\n")

	assert.Equal(t, "rescued: 20 MB", s.String())
}

func TestScreen_ReplaysTokenizerOutput(t *testing.T) {
	input := "About to copy 1000 MBytes\n" +
		"ipos: 10 MB\n" +
		"opos: 10 MB\n" +
		"\r\x1b[A\x1b[Aipos: 20 MB\n" +
		"opos: 20 MB\n"

	s := NewScreen(10, 40)
	tok := NewTokenizer(strings.NewReader(input))
	for tok.Scan() {
		s.Write(tok.Line().Replica)
	}

	out := s.String()
	assert.Contains(t, out, "About to copy 1000 MBytes")
	assert.Contains(t, out, "ipos: 20 MB")
	assert.Contains(t, out, "opos: 20 MB")
	assert.NotContains(t, out, "ipos: 10 MB")
}
