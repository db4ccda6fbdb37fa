// Package output reports loop progress: the tool chosen each iteration, its
// result or failure, and the end-of-run summary.
package output

import (
	"context"
	"fmt"
	"io"
)

// ResultPreviewRunes caps the result shown with tool-call details.
const ResultPreviewRunes = 500

// SummaryHeader opens the end-of-run summary.
const SummaryHeader = "--- Task tool usage summary"

// CallRecord is the summary entry for one dispatched tool call.
type CallRecord struct {
	Tool string
	Arg  string
}

func (r CallRecord) String() string {
	return fmt.Sprintf("[%s %s]", r.Tool, r.Arg)
}

// Printer receives loop events. Implementations may block only until
// the consumer catches up.
type Printer interface {
	PrintToolCall(tool, primary string)
	PrintResult(tool, primary, result string)
	PrintFailure(tool, primary, argsStr string, err error)
	PrintSummary(records []CallRecord)
}

// Stdout prints events for command-line runs.
type Stdout struct {
	w io.Writer
	// Details adds result previews and failure details.
	Details bool
}

// NewStdout creates a Stdout writing to w.
func NewStdout(w io.Writer, details bool) *Stdout {
	return &Stdout{w: w, Details: details}
}

func (s *Stdout) PrintToolCall(tool, primary string) {
	fmt.Fprintf(s.w, "--- [%s %s]\n", tool, primary)
}

func (s *Stdout) PrintResult(tool, primary, result string) {
	if !s.Details {
		return
	}
	fmt.Fprintf(s.w, "Tool call result: %s\n", truncateRunes(fmt.Sprintf("[%s %s]\n%s", tool, primary, result), ResultPreviewRunes))
}

func (s *Stdout) PrintFailure(tool, primary, argsStr string, err error) {
	fmt.Fprintf(s.w, "--- [%s %s]\n", tool, primary)
	if !s.Details {
		return
	}
	fmt.Fprintf(s.w, "Tool call failed: [FAILURE %s %s]\n", tool, argsStr)
	fmt.Fprintf(s.w, "Error: %v\n", err)
}

func (s *Stdout) PrintSummary(records []CallRecord) {
	fmt.Fprintln(s.w, SummaryHeader)
	for _, r := range records {
		fmt.Fprintln(s.w, r.String())
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Channel forwards events as display lines to the terminal front end.
// A send waits for room on the channel so no line is lost; once ctx is
// done, remaining lines are discarded.
type Channel struct {
	ctx context.Context
	ch  chan<- string
}

// NewChannel creates a Channel sending on ch until ctx is done.
func NewChannel(ctx context.Context, ch chan<- string) *Channel {
	return &Channel{ctx: ctx, ch: ch}
}

func (c *Channel) send(line string) {
	select {
	case c.ch <- line:
	case <-c.ctx.Done():
	}
}

func (c *Channel) PrintToolCall(tool, primary string) {
	c.send(fmt.Sprintf("--- [%s %s]", tool, primary))
}

// PrintResult forwards only results meant for the user.
func (c *Channel) PrintResult(tool, _ string, result string) {
	switch tool {
	case "describe_to_user", "finish_task", "finish_planning":
		c.send(result)
	}
}

func (c *Channel) PrintFailure(tool, primary, _ string, _ error) {
	c.send(fmt.Sprintf("--- [%s %s]", tool, primary))
}

func (c *Channel) PrintSummary(records []CallRecord) {
	c.send(SummaryHeader)
	for _, r := range records {
		c.send(r.String())
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) PrintToolCall(string, string) {}
func (Discard) PrintResult(string, string, string) {}
func (Discard) PrintFailure(string, string, string, error) {}
func (Discard) PrintSummary([]CallRecord) {}
