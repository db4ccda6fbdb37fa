package loop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/thruflo/attotool/internal/config"
	"github.com/thruflo/attotool/internal/llm"
	"github.com/thruflo/attotool/internal/logging"
	"github.com/thruflo/attotool/internal/output"
	"github.com/thruflo/attotool/internal/toolcall"
	"github.com/thruflo/attotool/internal/tools"
	"github.com/thruflo/attotool/internal/transcript"
)

// InstructionsFile is the project instructions file read into new
// transcripts.
const InstructionsFile = "AGENTS.md"

var (
	// ErrNoSuspension is returned when a resume does not match the pending
	// suspension.
	ErrNoSuspension = errors.New("no matching suspension")
	// ErrSuspended is returned by Start while a run awaits human input.
	ErrSuspended = errors.New("run is suspended awaiting input")
)

// State is the controller's position in a run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateAwaitingModel
	StateSuspended
	StateCompleted
	StateFailed
)

// String returns a human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateAwaitingModel:
		return "awaiting model"
	case StateSuspended:
		return "suspended"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OutcomeKind says how a controller call ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeSuspended
	OutcomeFailed
)

// String returns a human-readable name of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of Start or a resume. Suspension is set only for
// OutcomeSuspended and Err only for OutcomeFailed.
type Outcome struct {
	Kind       OutcomeKind
	Suspension *tools.Suspension
	Err        error
	// ToolCalls is the number of calls dispatched in the run so far.
	ToolCalls int
}

// Options configures a Controller.
type Options struct {
	Client   llm.Client
	Registry *tools.Registry
	Store    transcript.Store
	Output   output.Printer
	// Prompter answers gated calls inline. When nil, gated calls suspend
	// the run.
	Prompter Prompter
	Prompt   config.PromptTemplate

	// Dir is the project directory for the system prompt and the
	// instructions file.
	Dir       string
	Model     string
	MaxTokens int
	// Retries is the number of completion attempts made while the model
	// returns empty text. Values below 1 mean a single attempt.
	Retries int
	// MaxToolCalls ends the run after that many calls. Zero means no limit.
	MaxToolCalls    int
	Format          toolcall.Format
	Continue        bool
	DisableAgentsMD bool
	Logger          *logging.Logger
}

type pendingCall struct {
	inv        toolcall.Invocation
	suspension tools.Suspension
}

// Controller runs agent tasks against one transcript.
type Controller struct {
	opts       Options
	normalizer *toolcall.Normalizer
	baseLogger *logging.Logger

	// mu serializes Start and the resumes; the atomics below may be read
	// while a call is in progress.
	mu         sync.Mutex
	transcript *transcript.Transcript
	loaded     bool
	records    []output.CallRecord
	logger     *logging.Logger

	state   atomic.Int32
	count   atomic.Int64
	pending atomic.Pointer[pendingCall]
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.Output == nil {
		opts.Output = output.Discard{}
	}
	if opts.Store == nil {
		opts.Store = transcript.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Registry == nil {
		opts.Registry = tools.NewRegistry(tools.Options{Dir: opts.Dir, Logger: opts.Logger})
	}
	if opts.Prompt == nil {
		if tmpl, err := config.DefaultPromptTemplate(); err == nil {
			opts.Prompt = tmpl
		} else {
			opts.Logger.Error("failed to load default prompt", "error", err)
			opts.Prompt = config.PromptTemplate{}
		}
	}

	registry := opts.Registry
	return &Controller{
		opts: opts,
		normalizer: toolcall.New(toolcall.Options{
			Format:     opts.Format,
			FinishTool: registry.FinishTool().String(),
			ScalarKey:  registry.ScalarKey,
			Logger:     opts.Logger,
		}),
		baseLogger: opts.Logger,
		logger:     opts.Logger,
		transcript: transcript.New(),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// ToolCalls returns the number of calls dispatched in the current run.
func (c *Controller) ToolCalls() int {
	return int(c.count.Load())
}

// Pending returns the outstanding suspension, or nil.
func (c *Controller) Pending() *tools.Suspension {
	p := c.pending.Load()
	if p == nil {
		return nil
	}
	s := p.suspension
	return &s
}

// Transcript returns a copy of the in-memory transcript.
func (c *Controller) Transcript() []transcript.Message {
	return c.transcript.Messages()
}

// SystemPrompt renders the system prompt sent with every request.
func (c *Controller) SystemPrompt() string {
	return c.opts.Prompt.Render(config.PromptInput{
		Dir:      c.opts.Dir,
		AgentsMD: c.instructionsAvailable(),
		Plan:     c.opts.Registry.Mode().Plan,
		Tools:    c.opts.Registry.Describe(),
		Format:   c.opts.Format,
	})
}

// Start begins a new user turn with message. The first turn of a
// controller either loads the saved transcript (Continue) or starts a
// fresh one with the project instructions preamble. Later turns continue
// the in-memory transcript.
func (c *Controller) Start(ctx context.Context, message string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Load() != nil {
		return Outcome{Kind: OutcomeFailed, Err: ErrSuspended, ToolCalls: c.ToolCalls()}
	}
	if err := c.ensureTranscript(); err != nil {
		c.setState(StateFailed)
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	c.count.Store(0)
	c.records = nil
	c.logger = c.baseLogger.With("run_id", uuid.NewString())
	c.logger.Info("starting run", "model", c.opts.Model, "format", c.opts.Format.String())

	c.transcript.Append(transcript.RoleUser, message)
	return c.run(ctx)
}

// ResumeApproval resumes a run suspended for approval. A declined call
// still counts as dispatched.
func (c *Controller) ResumeApproval(ctx context.Context, approved bool) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.takePending(tools.SuspendApproval)
	if !ok {
		return Outcome{Kind: OutcomeFailed, Err: ErrNoSuspension, ToolCalls: c.ToolCalls()}
	}
	c.logger.Info("resuming after approval", "tool", p.inv.Name, "approved", approved)
	if out, done := c.dispatch(ctx, p.inv, &tools.Answer{Approved: approved}); done {
		return out
	}
	return c.run(ctx)
}

// ResumeClarification resumes a run suspended for clarification. The
// answer becomes the result of the ask_for_clarification call.
func (c *Controller) ResumeClarification(ctx context.Context, answer string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.takePending(tools.SuspendClarification)
	if !ok {
		return Outcome{Kind: OutcomeFailed, Err: ErrNoSuspension, ToolCalls: c.ToolCalls()}
	}
	c.logger.Info("resuming after clarification", "tool", p.inv.Name)
	if out, done := c.dispatch(ctx, p.inv, &tools.Answer{Clarification: answer}); done {
		return out
	}
	return c.run(ctx)
}

func (c *Controller) takePending(kind tools.SuspensionKind) (*pendingCall, bool) {
	p := c.pending.Load()
	if p == nil || p.suspension.Kind != kind {
		return nil, false
	}
	c.pending.Store(nil)
	c.setState(StateRunning)
	return p, true
}

func (c *Controller) ensureTranscript() error {
	if c.loaded {
		return nil
	}
	if c.opts.Continue {
		msgs, err := c.opts.Store.Load()
		if err != nil {
			return fmt.Errorf("failed to load transcript: %w", err)
		}
		for _, m := range msgs {
			c.transcript.Append(m.Role, m.Content)
		}
	} else {
		if content, ok := c.readInstructions(); ok {
			c.transcript.Append(transcript.RoleUser, fmt.Sprintf("[read_file path: '%s']\n%s", InstructionsFile, content))
		}
	}
	c.loaded = true
	return nil
}

func (c *Controller) instructionsAvailable() bool {
	if c.opts.DisableAgentsMD {
		return false
	}
	_, err := os.Stat(filepath.Join(c.opts.Dir, InstructionsFile))
	return err == nil
}

func (c *Controller) readInstructions() (string, bool) {
	if c.opts.DisableAgentsMD {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(c.opts.Dir, InstructionsFile))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// run iterates until the run completes, fails or suspends.
func (c *Controller) run(ctx context.Context) Outcome {
	for {
		if err := ctx.Err(); err != nil {
			return c.abort(err)
		}

		c.setState(StateAwaitingModel)
		text, err := c.complete(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.abort(ctx.Err())
			}
			return c.finish(OutcomeFailed, err)
		}
		c.setState(StateRunning)

		inv, err := c.normalizer.Normalize(text)
		if err != nil {
			return c.finish(OutcomeFailed, err)
		}
		c.transcript.Append(transcript.RoleAssistant, text)
		c.logger.Debug("tool selected", "tool", inv.Name, "args", inv.Args.Describe())

		primary := inv.Args.String(tools.PrimaryArgumentKey(inv.Name))
		c.records = append(c.records, output.CallRecord{Tool: inv.Name, Arg: primary})
		c.opts.Output.PrintToolCall(inv.Name, primary)

		if out, done := c.dispatch(ctx, inv, nil); done {
			return out
		}
	}
}

// complete asks the model until it returns non-blank text. Transport
// errors end the attempts immediately.
func (c *Controller) complete(ctx context.Context) (string, error) {
	attempts := c.opts.Retries
	if attempts < 1 {
		attempts = 1
	}

	req := llm.Request{
		Model:     c.opts.Model,
		System:    c.SystemPrompt(),
		Messages:  c.transcript.Messages(),
		MaxTokens: c.opts.MaxTokens,
		Format:    c.opts.Format,
		ToolNames: c.opts.Registry.Names(),
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Debug("requesting completion", "attempt", attempt, "messages", len(req.Messages))
		text, err := c.opts.Client.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			c.logger.Debug("model response", "text", text)
			return text, nil
		}
		c.logger.Warn("empty model response", "attempt", attempt, "attempts", attempts)
	}
	return "", fmt.Errorf("%w after %d attempts", toolcall.ErrEmptyResponse, attempts)
}

// dispatch gates and executes inv, records the result and applies the
// finish rules. ans is nil for a fresh call and set when resuming. The
// boolean reports whether the run has exited.
func (c *Controller) dispatch(ctx context.Context, inv toolcall.Invocation, ans *tools.Answer) (Outcome, bool) {
	registry := c.opts.Registry

	if ans == nil {
		if s := registry.Gate(inv); s != nil {
			if c.opts.Prompter == nil {
				return c.suspend(inv, *s), true
			}
			a, err := c.ask(ctx, *s)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.abort(ctxErr), true
			}
			if err != nil {
				return c.finish(OutcomeFailed, err), true
			}
			ans = &a
		} else {
			ans = &tools.Answer{}
		}
	}

	primary := inv.Args.String(tools.PrimaryArgumentKey(inv.Name))
	result, err := registry.Execute(ctx, inv, *ans)
	if err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx.Err()), true
		}
		argsStr := inv.Args.Describe()
		c.logger.Warn("tool call failed", "tool", inv.Name, "error", err)
		c.transcript.Append(transcript.RoleUser, fmt.Sprintf("[FAILURE %s %s]", inv.Name, argsStr))
		c.opts.Output.PrintFailure(inv.Name, primary, argsStr, err)
	} else {
		c.transcript.Append(transcript.RoleUser, fmt.Sprintf("[%s %s]\n%s", inv.Name, primary, result))
		c.opts.Output.PrintResult(inv.Name, primary, result)
	}

	count := int(c.count.Add(1))
	if t, ok := registry.Lookup(inv.Name); ok && t.IsFinish() {
		return c.finish(OutcomeCompleted, nil), true
	}
	if c.opts.MaxToolCalls != 0 && count >= c.opts.MaxToolCalls {
		c.logger.Info("tool call budget reached", "max_tool_calls", c.opts.MaxToolCalls)
		return c.finish(OutcomeCompleted, nil), true
	}
	return Outcome{}, false
}

func (c *Controller) ask(ctx context.Context, s tools.Suspension) (tools.Answer, error) {
	switch s.Kind {
	case tools.SuspendApproval:
		ok, err := c.opts.Prompter.Approve(ctx, s.Prompt)
		return tools.Answer{Approved: ok}, err
	default:
		text, err := c.opts.Prompter.Clarify(ctx, s.Prompt)
		return tools.Answer{Clarification: text}, err
	}
}

func (c *Controller) suspend(inv toolcall.Invocation, s tools.Suspension) Outcome {
	c.pending.Store(&pendingCall{inv: inv, suspension: s})
	c.setState(StateSuspended)
	c.logger.Info("run suspended", "kind", s.Kind.String(), "tool", inv.Name)
	if err := c.persist(); err != nil {
		c.logger.Error("failed to save transcript", "error", err)
	}
	out := s
	return Outcome{Kind: OutcomeSuspended, Suspension: &out, ToolCalls: c.ToolCalls()}
}

// finish ends the run: it saves the transcript and prints the summary. A
// save failure turns a completed run into a failed one.
func (c *Controller) finish(kind OutcomeKind, err error) Outcome {
	if saveErr := c.persist(); saveErr != nil {
		c.logger.Error("failed to save transcript", "error", saveErr)
		if err == nil {
			kind, err = OutcomeFailed, saveErr
		}
	}

	c.opts.Output.PrintSummary(c.records)
	c.records = nil
	c.pending.Store(nil)

	count := c.ToolCalls()
	if kind == OutcomeFailed {
		c.setState(StateFailed)
		c.logger.Error("run failed", "error", err, "tool_calls", count)
	} else {
		c.setState(StateCompleted)
		c.logger.Info("run completed", "tool_calls", count)
	}
	return Outcome{Kind: kind, Err: err, ToolCalls: count}
}

// abort ends a cancelled run without saving, so the last snapshot written
// at a completion or suspension stays current.
func (c *Controller) abort(err error) Outcome {
	c.records = nil
	c.pending.Store(nil)
	c.setState(StateFailed)
	c.logger.Info("run cancelled", "error", err)
	return Outcome{Kind: OutcomeFailed, Err: err, ToolCalls: c.ToolCalls()}
}

func (c *Controller) persist() error {
	if err := c.opts.Store.Save(c.transcript.Messages()); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}
