package loop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter answers gated calls inline. Command-line runs use one; the
// terminal front end does not, and handles suspensions itself.
type Prompter interface {
	Approve(ctx context.Context, prompt string) (bool, error)
	Clarify(ctx context.Context, question string) (string, error)
}

// ErrInputClosed is returned when the prompter's input ends before an
// answer is read.
var ErrInputClosed = errors.New("input closed")

// ConsolePrompter asks on a writer and reads answers line by line. A
// cancelled context abandons the wait; the line being read is then handed
// to the next question.
type ConsolePrompter struct {
	mu      sync.Mutex
	in      *bufio.Reader
	out     io.Writer
	reading chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewConsolePrompter creates a ConsolePrompter.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

// Approve approves on an empty answer or "y", case-insensitively.
func (p *ConsolePrompter) Approve(ctx context.Context, prompt string) (bool, error) {
	answer, err := p.ask(ctx, prompt)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "" || answer == "y", nil
}

// Clarify returns the trimmed answer line.
func (p *ConsolePrompter) Clarify(ctx context.Context, question string) (string, error) {
	return p.ask(ctx, question)
}

func (p *ConsolePrompter) ask(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintln(p.out, prompt)

	if p.reading == nil {
		p.reading = make(chan readResult, 1)
		go func(ch chan<- readResult) {
			line, err := p.in.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}(p.reading)
	}

	var res readResult
	select {
	case res = <-p.reading:
		p.reading = nil
	case <-ctx.Done():
		return "", ctx.Err()
	}

	line, err := res.line, res.err
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
