package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/attotool/internal/toolcall"
)

func call(name string, kv ...string) toolcall.Invocation {
	inv := toolcall.Invocation{Name: name}
	for i := 0; i+1 < len(kv); i += 2 {
		inv.Args = append(inv.Args, toolcall.StringArg(kv[i], kv[i+1]))
	}
	return inv
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()
	for _, tool := range allTools {
		assert.Equal(t, tool, Parse(tool.String()))
	}
	assert.Equal(t, Unknown, Parse("run_tests"))
}

func TestPrimaryArgumentKey(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"execute_shell_command": "command",
		"read_file":             "path",
		"write_file":            "path",
		"ask_for_clarification": "",
		"describe_to_user":      "",
		"finish_task":           "",
		"finish_planning":       "",
		"made_up":               "",
	}
	for name, want := range tests {
		assert.Equal(t, want, PrimaryArgumentKey(name), name)
	}
}

func TestActiveSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode Mode
		want []string
	}{
		{
			name: "normal",
			mode: Mode{},
			want: []string{"execute_shell_command", "read_file", "write_file", "ask_for_clarification", "describe_to_user", "finish_task"},
		},
		{
			name: "yolo",
			mode: Mode{Yolo: true},
			want: []string{"execute_shell_command", "read_file", "write_file", "describe_to_user", "finish_task"},
		},
		{
			name: "plan",
			mode: Mode{Plan: true},
			want: []string{"read_file", "ask_for_clarification", "describe_to_user", "finish_planning"},
		},
		{
			name: "plan with yolo",
			mode: Mode{Plan: true, Yolo: true},
			want: []string{"execute_shell_command", "read_file", "write_file", "ask_for_clarification", "describe_to_user", "finish_planning"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRegistry(Options{Mode: tt.mode})
			assert.Equal(t, tt.want, r.Names())
			for _, name := range tt.want {
				_, ok := r.Lookup(name)
				assert.True(t, ok, name)
			}
		})
	}
}

func TestFinishToolAndScalarKey(t *testing.T) {
	t.Parallel()
	normal := NewRegistry(Options{})
	plan := NewRegistry(Options{Mode: Mode{Plan: true}})

	assert.Equal(t, FinishTask, normal.FinishTool())
	assert.Equal(t, FinishPlanning, plan.FinishTool())
	assert.Equal(t, "message", normal.ScalarKey("finish_task"))
	assert.Equal(t, "", normal.ScalarKey("finish_planning"))
	assert.Equal(t, "", normal.ScalarKey("read_file"))
	assert.Equal(t, "message", plan.ScalarKey("finish_planning"))
}

func TestGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode Mode
		inv  toolcall.Invocation
		want *Suspension
	}{
		{
			name: "shell needs approval",
			inv:  call("execute_shell_command", "command", "rm", "args", "-rf build"),
			want: &Suspension{Kind: SuspendApproval, Prompt: "Do you want to run this command: `rm -rf build` ? (Y/n): "},
		},
		{
			name: "write needs approval",
			inv:  call("write_file", "path", "a.txt", "content", "x"),
			want: &Suspension{Kind: SuspendApproval, Prompt: "Do you want to write to file: a.txt? (Y/n): "},
		},
		{
			name: "yolo skips approval",
			mode: Mode{Yolo: true},
			inv:  call("write_file", "path", "a.txt"),
		},
		{
			name: "write without path is not gated",
			inv:  call("write_file", "content", "x"),
		},
		{
			name: "shell without command is not gated",
			inv:  call("execute_shell_command", "args", "-la"),
		},
		{
			name: "clarification",
			inv:  call("ask_for_clarification", "question", "Which branch?"),
			want: &Suspension{Kind: SuspendClarification, Prompt: "Which branch?"},
		},
		{
			name: "read runs freely",
			inv:  call("read_file", "path", "a.txt"),
		},
		{
			name: "unknown tool",
			inv:  call("delete_everything"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewRegistry(Options{Mode: tt.mode}).Gate(tt.inv)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteSimpleTools(t *testing.T) {
	t.Parallel()
	r := NewRegistry(Options{})
	ctx := context.Background()

	tests := []struct {
		inv  toolcall.Invocation
		ans  Answer
		want string
	}{
		{call("describe_to_user", "description", "a plan"), Answer{}, "Description: a plan"},
		{call("finish_task", "message", "done"), Answer{}, "Task completed: done"},
		{call("ask_for_clarification", "question", "which?"), Answer{Clarification: "main"}, "main"},
	}
	for _, tt := range tests {
		got, err := r.Execute(ctx, tt.inv, tt.ans)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	plan := NewRegistry(Options{Mode: Mode{Plan: true}})
	got, err := plan.Execute(ctx, call("finish_planning", "message", "1. read"), Answer{})
	require.NoError(t, err)
	assert.Equal(t, "Planning completed: 1. read", got)
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()
	r := NewRegistry(Options{Mode: Mode{Plan: true}})

	_, err := r.Execute(context.Background(), call("run_tests"), Answer{})
	require.ErrorIs(t, err, ErrUnknownTool)
	assert.Equal(t, "unknown tool: run_tests", err.Error())

	_, err = r.Execute(context.Background(), call("write_file", "path", "x"), Answer{Approved: true})
	assert.ErrorIs(t, err, ErrUnknownTool, "write_file is inactive in planning mode")
}

func TestExecuteMissingArgument(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry(Options{}).Execute(context.Background(), call("read_file"), Answer{})
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestExecuteFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := NewRegistry(Options{Dir: dir})
	ctx := context.Background()

	got, err := r.Execute(ctx, call("write_file", "path", "notes.txt", "content", "hello"), Answer{Approved: false})
	require.NoError(t, err)
	assert.Equal(t, WriteCancelled, got)
	_, statErr := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.True(t, os.IsNotExist(statErr), "declined write must not touch disk")

	got, err = r.Execute(ctx, call("write_file", "path", "notes.txt", "content", "hello"), Answer{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, "File written successfully", got)

	got, err = r.Execute(ctx, call("read_file", "path", "notes.txt"), Answer{})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = r.Execute(ctx, call("read_file", "path", "missing.txt"), Answer{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Error reading file: "), got)

	got, err = r.Execute(ctx, call("write_file", "path", "no/such/dir/x.txt", "content", "x"), Answer{Approved: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Error writing file: "), got)
}

func TestExecuteShell(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := NewRegistry(Options{Dir: dir})
	ctx := context.Background()

	got, err := r.Execute(ctx, call("execute_shell_command", "command", "touch", "args", "made"), Answer{})
	require.NoError(t, err)
	assert.Equal(t, ShellCancelled, got)
	_, statErr := os.Stat(filepath.Join(dir, "made"))
	assert.True(t, os.IsNotExist(statErr))

	got, err = r.Execute(ctx, call("execute_shell_command", "command", "echo", "args", "hi"), Answer{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", got)

	got, err = r.Execute(ctx, call("execute_shell_command", "command", "echo", "args", "oops 1>&2; exit 3"), Answer{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, "\nStderr: oops\n", got)

	yolo := NewRegistry(Options{Dir: dir, Mode: Mode{Yolo: true}})
	got, err = yolo.Execute(ctx, call("execute_shell_command", "command", "pwd"), Answer{})
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, []string{dir + "\n", resolved + "\n"}, got)
}

func TestExecuteShellCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRegistry(Options{Mode: Mode{Yolo: true}})
	_, err := r.Execute(ctx, call("execute_shell_command", "command", "sleep", "args", "5"), Answer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	got := NewRegistry(Options{Mode: Mode{Plan: true}}).Describe()
	assert.Contains(t, got, "read_file: 'Reads a file on the local filesystem'\n  path: string")
	assert.Contains(t, got, "finish_planning:")
	assert.NotContains(t, got, "write_file")
}
