package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/thruflo/attotool/internal/llm"
	"github.com/thruflo/attotool/internal/output"
)

// ScriptedReply is one canned model response. When Err is set it is
// returned instead of Text.
type ScriptedReply struct {
	Text string
	Err  error
}

// ScriptedClient is an llm.Client that replays replies in order and
// records every request. Once the script is exhausted it returns Fallback,
// or an error when Fallback is empty.
type ScriptedClient struct {
	mu       sync.Mutex
	replies  []ScriptedReply
	requests []llm.Request
	Fallback string
	// Block, when set, is waited on before each reply.
	Block <-chan struct{}
}

// NewScriptedClient creates a client replying with texts in order.
func NewScriptedClient(texts ...string) *ScriptedClient {
	c := &ScriptedClient{}
	for _, text := range texts {
		c.replies = append(c.replies, ScriptedReply{Text: text})
	}
	return c
}

// Push appends replies to the script.
func (c *ScriptedClient) Push(replies ...ScriptedReply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
}

// Complete returns the next scripted reply.
func (c *ScriptedClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	if c.Block != nil {
		select {
		case <-c.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	if len(c.replies) == 0 {
		if c.Fallback != "" {
			return c.Fallback, nil
		}
		return "", fmt.Errorf("scripted client: no reply for request %d", len(c.requests))
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	return next.Text, next.Err
}

// Requests returns a copy of the recorded requests.
func (c *ScriptedClient) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// Remaining reports how many scripted replies are unused.
func (c *ScriptedClient) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replies)
}

// PrintedEvent is one call recorded by RecordingPrinter.
type PrintedEvent struct {
	Kind    string
	Tool    string
	Primary string
	Text    string
	Records []output.CallRecord
}

// RecordingPrinter is an output.Printer that keeps every event.
type RecordingPrinter struct {
	mu     sync.Mutex
	events []PrintedEvent
}

func (p *RecordingPrinter) add(e PrintedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *RecordingPrinter) PrintToolCall(tool, primary string) {
	p.add(PrintedEvent{Kind: "call", Tool: tool, Primary: primary})
}

func (p *RecordingPrinter) PrintResult(tool, primary, result string) {
	p.add(PrintedEvent{Kind: "result", Tool: tool, Primary: primary, Text: result})
}

func (p *RecordingPrinter) PrintFailure(tool, primary, argsStr string, err error) {
	p.add(PrintedEvent{Kind: "failure", Tool: tool, Primary: primary, Text: fmt.Sprintf("%s | %v", argsStr, err)})
}

func (p *RecordingPrinter) PrintSummary(records []output.CallRecord) {
	p.add(PrintedEvent{Kind: "summary", Records: append([]output.CallRecord(nil), records...)})
}

// Events returns a copy of the recorded events.
func (p *RecordingPrinter) Events() []PrintedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PrintedEvent(nil), p.events...)
}

// Kinds returns the kind of every recorded event in order.
func (p *RecordingPrinter) Kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, len(p.events))
	for i, e := range p.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Summaries returns the records of every summary event.
func (p *RecordingPrinter) Summaries() [][]output.CallRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out [][]output.CallRecord
	for _, e := range p.events {
		if e.Kind == "summary" {
			out = append(out, e.Records)
		}
	}
	return out
}

// ScriptedPrompter answers approvals and clarifications from fixed lists.
type ScriptedPrompter struct {
	mu             sync.Mutex
	Approvals      []bool
	Clarifications []string
	Prompts        []string
}

func (p *ScriptedPrompter) Approve(_ context.Context, prompt string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, prompt)
	if len(p.Approvals) == 0 {
		return false, fmt.Errorf("scripted prompter: no approval for %q", prompt)
	}
	ok := p.Approvals[0]
	p.Approvals = p.Approvals[1:]
	return ok, nil
}

func (p *ScriptedPrompter) Clarify(_ context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, question)
	if len(p.Clarifications) == 0 {
		return "", fmt.Errorf("scripted prompter: no answer for %q", question)
	}
	a := p.Clarifications[0]
	p.Clarifications = p.Clarifications[1:]
	return a, nil
}
