package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestANSIEscapeConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		constant string
		want     string
	}{
		{"ClearScreen", ClearScreen, "\033[2J"},
		{"CursorHide", CursorHide, "\033[?25l"},
		{"CursorShow", CursorShow, "\033[?25h"},
		{"AltScreenEnter", AltScreenEnter, "\033[?1049h"},
		{"AltScreenExit", AltScreenExit, "\033[?1049l"},
		{"MouseEnable", MouseEnable, "\033[?1000h\033[?1006h"},
		{"Reset", Reset, "\033[0m"},
		{"Bell", Bell, "\a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.constant)
		})
	}
}

func TestCursorTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		row, col int
		want     string
	}{
		{"origin", 1, 1, "\033[1;1H"},
		{"row 5 col 10", 5, 10, "\033[5;10H"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CursorTo(tt.row, tt.col))
		})
	}
}

func TestTerminalFullscreen(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	term := NewTerminal(nil, &buf)

	term.EnterFullscreen()
	assert.Contains(t, buf.String(), AltScreenEnter)
	assert.Contains(t, buf.String(), MouseEnable)

	buf.Reset()
	term.ExitFullscreen()
	assert.Contains(t, buf.String(), MouseDisable)
	assert.Contains(t, buf.String(), AltScreenExit)

	buf.Reset()
	term.ExitFullscreen()
	assert.Empty(t, buf.String())
}

func TestTerminalWriters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(*Terminal)
		want  string
	}{
		{"write", func(t *Terminal) { t.Write("hi") }, "hi"},
		{"clear", func(t *Terminal) { t.Clear() }, ClearScreen + CursorHome},
		{"hide", func(t *Terminal) { t.HideCursor() }, CursorHide},
		{"show", func(t *Terminal) { t.ShowCursor() }, CursorShow},
		{"bell", func(t *Terminal) { t.RingBell() }, Bell},
		{"move", func(t *Terminal) { t.MoveTo(3, 4) }, "\033[3;4H"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.write(NewTerminal(nil, &buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTerminalNotRawByDefault(t *testing.T) {
	t.Parallel()
	term := NewTerminal(nil, &bytes.Buffer{})
	assert.False(t, term.IsRaw())
	assert.False(t, term.IsTerminal())
	assert.NoError(t, term.ExitRaw())
}
