package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/thruflo/attotool/internal/logging"
	"github.com/thruflo/attotool/internal/loop"
	"github.com/thruflo/attotool/internal/tools"
)

// History line prefixes.
const (
	PrefixUser          = "User: "
	PrefixError         = "Error: "
	PrefixApproval      = "Approval: "
	PrefixClarification = "Clarification: "
	PrefixDecision      = "Decision: "

	processingLine = "Processing request..."
)

const (
	// OutputBuffer is the capacity of the output line channel.
	OutputBuffer = 100
	// DefaultTick is the redraw interval when nothing else happens.
	DefaultTick = 250 * time.Millisecond

	wheelStep = 3
)

// ErrNotTerminal is returned by Run when the input is not an interactive
// terminal.
var ErrNotTerminal = errors.New("the interface needs an interactive terminal")

// Runner is the part of the loop controller the front end drives.
type Runner interface {
	Start(ctx context.Context, message string) loop.Outcome
	ResumeApproval(ctx context.Context, approved bool) loop.Outcome
	ResumeClarification(ctx context.Context, answer string) loop.Outcome
}

// Options configures an App.
type Options struct {
	Runner Runner
	// Lines carries output produced by runs, see output.Channel.
	Lines <-chan string
	In    *os.File
	Out   io.Writer

	// Initial, when set, is submitted as the first task.
	Initial string
	// Model is shown on the status line.
	Model  string
	Tick   time.Duration
	Logger *logging.Logger
}

// App is the terminal front end. All of its state is owned by the
// goroutine running the event loop; runs execute in the background and
// report back through a channel.
type App struct {
	runner   Runner
	terminal *Terminal
	lines    <-chan string
	results  chan loop.Outcome
	tick     time.Duration
	model    string
	initial  string
	logger   *logging.Logger

	history    *HistoryView
	editor     *LineEditor
	processing bool
	pending    *tools.Suspension
	decision   *bool
	runCtx     context.Context
}

// NewApp creates an App.
func NewApp(opts Options) *App {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &App{
		runner:   opts.Runner,
		terminal: NewTerminal(opts.In, opts.Out),
		lines:    opts.Lines,
		results:  make(chan loop.Outcome, 1),
		tick:     opts.Tick,
		model:    opts.Model,
		initial:  opts.Initial,
		logger:   opts.Logger,
		history:  NewHistoryView(5000),
		editor:   NewLineEditor(),
		runCtx:   context.Background(),
	}
}

// Run takes over the terminal until the user quits or ctx ends. Quitting
// cancels an in-flight run without waiting for it.
func (a *App) Run(ctx context.Context) error {
	if !a.terminal.IsTerminal() {
		return ErrNotTerminal
	}
	if err := a.terminal.EnterRaw(); err != nil {
		return err
	}
	defer a.terminal.ExitRaw()
	a.terminal.EnterFullscreen()
	defer a.terminal.ExitFullscreen()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make(chan KeyEvent, 10)
	keyErr := make(chan error, 1)
	reader := NewKeyReader(a.terminal)
	go func() {
		for {
			ev, err := reader.ReadKey()
			if err != nil {
				keyErr <- err
				return
			}
			select {
			case keys <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return a.loop(ctx, keys, keyErr)
}

// loop handles one ready source per cycle and redraws after each.
func (a *App) loop(ctx context.Context, keys <-chan KeyEvent, keyErr <-chan error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.runCtx = runCtx

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	if a.initial != "" {
		a.editor.SetText(a.initial)
		a.initial = ""
		a.submit()
	}

	a.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-keyErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case ev := <-keys:
			if a.handleKey(ev) {
				if a.processing {
					a.logger.Info("quitting with a run in flight")
				}
				return nil
			}
		case line := <-a.lines:
			a.history.Append(line)
		case out := <-a.results:
			a.handleOutcome(out)
		case <-ticker.C:
		}
		a.draw()
	}
}

// handleKey applies ev and reports whether the user asked to quit.
func (a *App) handleKey(ev KeyEvent) bool {
	if IsQuit(ev) {
		return true
	}

	switch ev.Key {
	case KeyWheelUp:
		a.history.Scroll(wheelStep)
		return false
	case KeyWheelDown:
		a.history.Scroll(-wheelStep)
		return false
	case KeyPageUp:
		a.history.Scroll(a.historyHeight())
		return false
	case KeyPageDown:
		a.history.Scroll(-a.historyHeight())
		return false
	case KeyUp:
		if a.pending == nil && !a.processing {
			if last, ok := a.history.LastWithPrefix(PrefixUser); ok {
				a.editor.SetText(last)
			}
		}
		return false
	case KeyEnter:
		a.submit()
		return false
	}

	if a.pending == nil && a.processing {
		return false
	}
	if a.pending != nil && a.pending.Kind == tools.SuspendApproval && ev.Key == KeyRune {
		switch ev.Rune {
		case 'y', 'Y':
			approved := true
			a.decision = &approved
		case 'n', 'N':
			declined := false
			a.decision = &declined
		}
	}
	a.editor.HandleKey(ev)
	return false
}

func (a *App) submit() {
	switch {
	case a.pending == nil:
		if a.processing {
			a.logger.Debug("ignoring enter while processing")
			return
		}
		text := strings.TrimSpace(a.editor.Text())
		if text == "" {
			return
		}
		a.editor.Clear()
		a.history.Append(PrefixUser + text)
		a.history.Append(processingLine)
		a.spawn(func(ctx context.Context) loop.Outcome {
			return a.runner.Start(ctx, text)
		})

	case a.pending.Kind == tools.SuspendApproval:
		if a.decision == nil {
			return
		}
		approved := *a.decision
		if note := strings.TrimSpace(a.editor.Text()); note != "" {
			a.logger.Info("approval note", "approved", approved, "note", note)
		}
		a.editor.Clear()
		if approved {
			a.history.Append(PrefixDecision + "approved")
		} else {
			a.history.Append(PrefixDecision + "declined")
		}
		a.pending, a.decision = nil, nil
		a.spawn(func(ctx context.Context) loop.Outcome {
			return a.runner.ResumeApproval(ctx, approved)
		})

	default:
		answer := strings.TrimSpace(a.editor.Text())
		a.editor.Clear()
		a.history.Append(PrefixUser + answer)
		a.pending = nil
		a.spawn(func(ctx context.Context) loop.Outcome {
			return a.runner.ResumeClarification(ctx, answer)
		})
	}
}

// spawn starts the single in-flight run. results has room for its outcome,
// so the goroutine never blocks after the loop has exited.
func (a *App) spawn(run func(context.Context) loop.Outcome) {
	a.processing = true
	ctx := a.runCtx
	go func() {
		a.results <- run(ctx)
	}()
}

// handleOutcome shows queued output before the outcome, since that output
// was produced first.
func (a *App) handleOutcome(out loop.Outcome) {
	a.drainLines()
	a.processing = false

	switch out.Kind {
	case loop.OutcomeSuspended:
		if out.Suspension == nil {
			return
		}
		s := *out.Suspension
		if s.Kind == tools.SuspendApproval {
			a.history.Append(PrefixApproval + s.Prompt)
		} else {
			a.history.Append(PrefixClarification + s.Prompt)
		}
		a.pending, a.decision = &s, nil
		a.terminal.RingBell()
	case loop.OutcomeCompleted:
		a.pending, a.decision = nil, nil
	case loop.OutcomeFailed:
		msg := "run failed"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		a.history.Append(PrefixError + msg)
	}
}

func (a *App) drainLines() {
	for {
		select {
		case line := <-a.lines:
			a.history.Append(line)
		default:
			return
		}
	}
}

func (a *App) size() (int, int) {
	width, height := 80, 24
	if a.terminal.in != nil {
		if w, h, err := a.terminal.Size(); err == nil {
			width, height = w, h
		}
	}
	if width < 20 {
		width = 20
	}
	if height < 6 {
		height = 6
	}
	return width, height
}

// historyHeight is the screen minus the status line and the input box.
func (a *App) historyHeight() int {
	_, height := a.size()
	return height - 4
}

func (a *App) status() StatusState {
	s := StatusState{
		Processing: a.processing,
		Model:      a.model,
		Scrolled:   a.history.Offset() > 0,
	}
	if a.pending != nil {
		switch a.pending.Kind {
		case tools.SuspendApproval:
			s.Approval = true
			s.Decision = a.decision
		case tools.SuspendClarification:
			s.Clarification = true
		}
	}
	return s
}

func (a *App) draw() {
	width, height := a.size()
	historyHeight := height - 4

	var sb strings.Builder
	sb.WriteString(CursorHide)
	for i, line := range a.history.Render(width, historyHeight) {
		sb.WriteString(CursorTo(i+1, 1))
		sb.WriteString(line)
	}
	sb.WriteString(CursorTo(historyHeight+1, 1))
	sb.WriteString(StatusLine(a.status(), width))
	for i, line := range InputBox(a.editor.Text(), width) {
		sb.WriteString(CursorTo(historyHeight+2+i, 1))
		sb.WriteString(line)
	}

	visible := len([]rune(TailFit(a.editor.Text(), width-6)))
	sb.WriteString(CursorTo(historyHeight+3, 5+visible))
	sb.WriteString(CursorShow)
	a.terminal.Write(sb.String())
}
