package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/thruflo/attotool/internal/logging"
	"github.com/thruflo/attotool/internal/toolcall"
)

var (
	// ErrUnknownTool is returned for names outside the active tool set.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMissingArgument is returned when a tool's primary argument is absent.
	ErrMissingArgument = errors.New("missing argument")
)

// Result texts for declined approvals.
const (
	ShellCancelled = "Command execution cancelled."
	WriteCancelled = "File write cancelled."
)

// SuspensionKind distinguishes the two kinds of human input a call can need.
type SuspensionKind int

const (
	SuspendApproval SuspensionKind = iota
	SuspendClarification
)

func (k SuspensionKind) String() string {
	switch k {
	case SuspendApproval:
		return "approval"
	case SuspendClarification:
		return "clarification"
	default:
		return "unknown"
	}
}

// Suspension describes the human input needed before a call can proceed.
type Suspension struct {
	Kind   SuspensionKind
	Prompt string
}

// Answer carries the human input for a gated call.
type Answer struct {
	Approved      bool
	Clarification string
}

// Mode selects the active tool set.
type Mode struct {
	// Yolo skips approvals and, outside planning, clarification.
	Yolo bool
	// Plan swaps finish_task for finish_planning and, without Yolo, drops
	// the mutating tools.
	Plan bool
}

// Options configures a Registry.
type Options struct {
	Mode Mode
	// Dir is the working directory for relative paths and shell commands.
	// Empty means the process working directory.
	Dir string
	// Shell runs commands as `<Shell> -c "<command> <args>"`. Defaults to sh.
	Shell  string
	Logger *logging.Logger
}

// Registry is the active tool set for one mode.
type Registry struct {
	mode   Mode
	dir    string
	shell  string
	active []Tool
	logger *logging.Logger
}

// NewRegistry builds the active tool set for opts.Mode.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		mode:   opts.Mode,
		dir:    opts.Dir,
		shell:  opts.Shell,
		logger: opts.Logger,
	}
	if r.shell == "" {
		r.shell = "sh"
	}
	if r.logger == nil {
		r.logger = logging.Nop()
	}

	for _, t := range allTools {
		if r.includes(t) {
			r.active = append(r.active, t)
		}
	}
	return r
}

func (r *Registry) includes(t Tool) bool {
	switch t {
	case FinishTask:
		return !r.mode.Plan
	case FinishPlanning:
		return r.mode.Plan
	case ExecuteShellCommand, WriteFile:
		return !r.mode.Plan || r.mode.Yolo
	case AskForClarification:
		return r.mode.Plan || !r.mode.Yolo
	default:
		return true
	}
}

// Mode returns the mode the registry was built for.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Tools returns the active tools in prompt order.
func (r *Registry) Tools() []Tool {
	return append([]Tool(nil), r.active...)
}

// Names returns the names of the active tools.
func (r *Registry) Names() []string {
	names := make([]string, len(r.active))
	for i, t := range r.active {
		names[i] = t.String()
	}
	return names
}

// Lookup resolves name within the active set.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t := Parse(name)
	if t == Unknown {
		return Unknown, false
	}
	for _, a := range r.active {
		if a == t {
			return t, true
		}
	}
	return Unknown, false
}

// FinishTool returns the tool that ends a run in this mode.
func (r *Registry) FinishTool() Tool {
	if r.mode.Plan {
		return FinishPlanning
	}
	return FinishTask
}

// ScalarKey names the argument a bare scalar is stored under. Only the
// active finish tool accepts one.
func (r *Registry) ScalarKey(name string) string {
	if t, ok := r.Lookup(name); ok && t.IsFinish() {
		return toolcall.FallbackKey
	}
	return ""
}

// Describe renders the active tools for the system prompt.
func (r *Registry) Describe() string {
	parts := make([]string, len(r.active))
	for i, t := range r.active {
		parts[i] = t.Format()
	}
	return strings.Join(parts, "\n")
}

// Gate reports the human input inv needs before it can run, or nil. Calls
// missing their primary argument are not gated; Execute rejects them.
func (r *Registry) Gate(inv toolcall.Invocation) *Suspension {
	t, ok := r.Lookup(inv.Name)
	if !ok {
		return nil
	}
	if key := t.PrimaryKey(); key != "" {
		if _, ok := inv.Args.Get(key); !ok {
			return nil
		}
	}
	switch {
	case t == AskForClarification:
		return &Suspension{Kind: SuspendClarification, Prompt: inv.Args.String("question")}
	case t.Mutating() && !r.mode.Yolo:
		return &Suspension{Kind: SuspendApproval, Prompt: approvalPrompt(t, inv.Args)}
	}
	return nil
}

func approvalPrompt(t Tool, args toolcall.Args) string {
	if t == ExecuteShellCommand {
		return fmt.Sprintf("Do you want to run this command: `%s` ? (Y/n): ", shellLine(args))
	}
	return fmt.Sprintf("Do you want to write to file: %s? (Y/n): ", args.String("path"))
}

func shellLine(args toolcall.Args) string {
	return args.String("command") + " " + args.String("args")
}

// Execute runs inv. ans carries the decision for gated calls and is
// ignored otherwise. Declined approvals return the cancellation text
// without error.
func (r *Registry) Execute(ctx context.Context, inv toolcall.Invocation, ans Answer) (string, error) {
	t, ok := r.Lookup(inv.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, inv.Name)
	}
	if key := t.PrimaryKey(); key != "" {
		if _, ok := inv.Args.Get(key); !ok {
			return "", fmt.Errorf("%w: %s requires %s", ErrMissingArgument, t, key)
		}
	}
	gated := t.Mutating() && !r.mode.Yolo

	switch t {
	case ExecuteShellCommand:
		if gated && !ans.Approved {
			return ShellCancelled, nil
		}
		return r.runShell(ctx, shellLine(inv.Args))
	case ReadFile:
		data, err := os.ReadFile(r.resolve(inv.Args.String("path")))
		if err != nil {
			return fmt.Sprintf("Error reading file: %v", err), nil
		}
		return string(data), nil
	case WriteFile:
		if gated && !ans.Approved {
			return WriteCancelled, nil
		}
		path := r.resolve(inv.Args.String("path"))
		if err := os.WriteFile(path, []byte(inv.Args.String("content")), 0o644); err != nil {
			return fmt.Sprintf("Error writing file: %v", err), nil
		}
		return "File written successfully", nil
	case AskForClarification:
		return ans.Clarification, nil
	case DescribeToUser:
		return "Description: " + inv.Args.String("description"), nil
	case FinishTask:
		return "Task completed: " + inv.Args.String("message"), nil
	case FinishPlanning:
		return "Planning completed: " + inv.Args.String("message"), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, inv.Name)
}

func (r *Registry) resolve(path string) string {
	if r.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.dir, path)
}

// runShell returns stdout, with stderr appended when present. A non-zero
// exit status is reported through the output rather than as an error.
func (r *Registry) runShell(ctx context.Context, line string) (string, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-c", line)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running shell command", "shell", r.shell, "line", line)
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("failed to run command: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("failed to run command: %w", err)
	}

	result := stdout.String()
	if stderr.Len() > 0 {
		result += "\nStderr: " + stderr.String()
	}
	return result, nil
}
