package tui

import (
	"fmt"
	"strings"
)

// HistoryView holds the conversation lines and a scroll offset measured in
// wrapped rows from the bottom.
type HistoryView struct {
	lines    []string
	maxLines int
	offset   int
}

// NewHistoryView creates a HistoryView that keeps at most maxLines lines.
func NewHistoryView(maxLines int) *HistoryView {
	if maxLines < 1 {
		maxLines = 1000
	}
	return &HistoryView{
		lines:    make([]string, 0, 64),
		maxLines: maxLines,
	}
}

// Append adds a line. New output snaps the view back to the bottom.
func (v *HistoryView) Append(line string) {
	v.lines = append(v.lines, line)
	if len(v.lines) > v.maxLines {
		v.lines = v.lines[len(v.lines)-v.maxLines:]
	}
	v.offset = 0
}

// Lines returns all lines in the buffer.
func (v *HistoryView) Lines() []string {
	return v.lines
}

// LastWithPrefix returns the most recent line starting with prefix,
// without the prefix.
func (v *HistoryView) LastWithPrefix(prefix string) (string, bool) {
	for i := len(v.lines) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(v.lines[i], prefix); ok {
			return rest, true
		}
	}
	return "", false
}

// Scroll moves the view by delta rows; positive scrolls back in time.
func (v *HistoryView) Scroll(delta int) {
	v.offset += delta
	if v.offset < 0 {
		v.offset = 0
	}
}

// Offset returns the current scroll offset.
func (v *HistoryView) Offset() int {
	return v.offset
}

type row struct {
	text  string
	color string
}

func (v *HistoryView) rows(width int) []row {
	var out []row
	for _, line := range v.lines {
		color := LineColor(line)
		for _, w := range WrapText(line, width) {
			out = append(out, row{text: w, color: color})
		}
	}
	return out
}

// Render returns exactly height rows for a pane width columns wide. The
// offset is clamped so the first row is never scrolled past.
func (v *HistoryView) Render(width, height int) []string {
	if width < 1 || height < 1 {
		return nil
	}

	rows := v.rows(width)
	maxOffset := len(rows) - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if v.offset > maxOffset {
		v.offset = maxOffset
	}

	end := len(rows) - v.offset
	start := end - height
	if start < 0 {
		start = 0
	}

	out := make([]string, 0, height)
	for _, r := range rows[start:end] {
		out = append(out, Style(PadOrTruncate(r.text, width), colorCodes(r.color)...))
	}
	for len(out) < height {
		out = append(out, strings.Repeat(" ", width))
	}
	return out
}

func colorCodes(color string) []string {
	if color == "" {
		return nil
	}
	return []string{color}
}

// StatusState is what the status line describes.
type StatusState struct {
	Processing bool
	// Approval is true while an approval is pending; Decision holds the
	// y/n choice made so far, or nil.
	Approval      bool
	Decision      *bool
	Clarification bool
	Model         string
	Scrolled      bool
}

// StatusLine renders the one-line status bar.
func StatusLine(s StatusState, width int) string {
	var text string
	switch {
	case s.Approval:
		choice := "undecided"
		if s.Decision != nil {
			choice = "no"
			if *s.Decision {
				choice = "yes"
			}
		}
		text = fmt.Sprintf("awaiting approval (%s) | y/n then Enter", choice)
	case s.Clarification:
		text = "awaiting clarification | type an answer then Enter"
	case s.Processing:
		text = "processing..."
	default:
		text = "ready | Enter to send, Up to recall, Esc Esc to quit"
	}
	if s.Scrolled {
		text += " | scrolled"
	}
	if s.Model != "" {
		text = s.Model + " | " + text
	}
	return Style(PadOrTruncate(text, width), Reverse)
}

// InputBox renders the bordered input line. The tail of a long buffer is
// kept visible.
func InputBox(text string, width int) []string {
	if width < 8 {
		width = 8
	}
	prompt := "> "
	return BoxWithContent(width, []string{prompt + TailFit(text, width-4-len(prompt))})
}
