package toolcall

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/attotool/internal/logging"
)

func finishScalar(tool string) string {
	if tool == "finish_task" || tool == "finish_planning" {
		return FallbackKey
	}
	return ""
}

func newNormalizer(format Format) *Normalizer {
	return New(Options{Format: format, FinishTool: "finish_task", ScalarKey: finishScalar})
}

func TestNormalizeYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Invocation
	}{
		{
			name: "single mapping",
			text: "read_file:\n  path: main.go\n",
			want: Invocation{Name: "read_file", Args: Args{StringArg("path", "main.go")}},
		},
		{
			name: "argument order preserved",
			text: "execute_shell_command:\n  command: ls\n  args: -la\n",
			want: Invocation{Name: "execute_shell_command", Args: Args{StringArg("command", "ls"), StringArg("args", "-la")}},
		},
		{
			name: "first of three keys wins",
			text: "read_file:\n  path: a\nwrite_file:\n  path: b\nfinish_task:\n  message: c\n",
			want: Invocation{Name: "read_file", Args: Args{StringArg("path", "a")}},
		},
		{
			name: "null arguments",
			text: "describe_to_user:\n",
			want: Invocation{Name: "describe_to_user"},
		},
		{
			name: "scalar wrapped for finish tool",
			text: "finish_task: all done",
			want: Invocation{Name: "finish_task", Args: Args{StringArg("message", "all done")}},
		},
		{
			name: "typed scalars",
			text: "execute_shell_command:\n  command: sleep\n  args: 5\n",
			want: Invocation{Name: "execute_shell_command", Args: Args{
				StringArg("command", "sleep"),
				{Key: "args", Value: 5, Text: "5"},
			}},
		},
		{
			name: "quoted number stays a string",
			text: "read_file:\n  path: '007'\n",
			want: Invocation{Name: "read_file", Args: Args{StringArg("path", "007")}},
		},
		{
			name: "nested value serialized",
			text: "write_file:\n  path: list.yaml\n  content:\n    - a\n    - b\n",
			want: Invocation{Name: "write_file", Args: Args{StringArg("path", "list.yaml"), StringArg("content", "- a\n- b")}},
		},
		{
			name: "block scalar content",
			text: "write_file:\n  content: |\n    line one\n    line two\n  path: notes.txt\n",
			want: Invocation{Name: "write_file", Args: Args{StringArg("content", "line one\nline two\n"), StringArg("path", "notes.txt")}},
		},
		{
			name: "prefix before blank line",
			text: "read_file:\n  path: go.mod\n\nReading: it: now",
			want: Invocation{Name: "read_file", Args: Args{StringArg("path", "go.mod")}},
		},
		{
			name: "json accepted as yaml",
			text: `{"read_file": {"path": "x.go"}}`,
			want: Invocation{Name: "read_file", Args: Args{StringArg("path", "x.go")}},
		},
		{
			name: "unknown tool kept for registry",
			text: "run_tests:\n  pkg: ./...\n",
			want: Invocation{Name: "run_tests", Args: Args{StringArg("pkg", "./...")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := newNormalizer(FormatYAML).Normalize(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		finish string
	}{
		{"plain prose", "hello there", "finish_task"},
		{"scalar for non-finish tool", "read_file: main.go", "finish_task"},
		{"sequence", "- read_file\n- write_file", "finish_task"},
		{"invalid yaml", "key: [unclosed\n\nstill: [broken", "finish_task"},
		{"planning mode", "I am done planning.", "finish_planning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := New(Options{FinishTool: tt.finish, ScalarKey: finishScalar})
			got, err := n.Normalize("  " + tt.text + "\n")
			require.NoError(t, err)
			assert.Equal(t, tt.finish, got.Name)
			assert.Equal(t, Args{StringArg("message", tt.text)}, got.Args)
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", " ", "\n\t\n"} {
		_, err := newNormalizer(FormatYAML).Normalize(text)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestNormalizeJSON(t *testing.T) {
	t.Parallel()
	n := newNormalizer(FormatJSON)

	got, err := n.Normalize(`{"write_file": {"path": "a.txt", "content": "hi\nthere"}, "finish_task": {}}`)
	require.NoError(t, err)
	assert.Equal(t, Invocation{Name: "write_file", Args: Args{StringArg("path", "a.txt"), StringArg("content", "hi\nthere")}}, got)

	got, err = n.Normalize("read_file:\n  path: a")
	require.NoError(t, err)
	assert.Equal(t, "finish_task", got.Name, "yaml text is not json")
}

func TestNormalizeFixedKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Invocation
	}{
		{
			name: "sorted arguments",
			text: `{"tool": "execute_shell_command", "tool_args": {"command": "ls", "args": "-la"}}`,
			want: Invocation{Name: "execute_shell_command", Args: Args{StringArg("args", "-la"), StringArg("command", "ls")}},
		},
		{
			name: "json5 trailing comma and comment",
			text: "{\n  // pick a tool\n  tool: 'read_file',\n  tool_args: {path: 'a.go',},\n}",
			want: Invocation{Name: "read_file", Args: Args{StringArg("path", "a.go")}},
		},
		{
			name: "numbers and bools",
			text: `{"tool": "x", "tool_args": {"n": 3, "f": 1.5, "b": true}}`,
			want: Invocation{Name: "x", Args: Args{
				{Key: "b", Value: true, Text: "true"},
				{Key: "f", Value: 1.5, Text: "1.5"},
				{Key: "n", Value: 3, Text: "3"},
			}},
		},
		{
			name: "missing tool_args falls back",
			text: `{"tool": "read_file"}`,
			want: Invocation{Name: "finish_task", Args: Args{StringArg("message", `{"tool": "read_file"}`)}},
		},
		{
			name: "wrong envelope falls back",
			text: `{"read_file": {"path": "a"}}`,
			want: Invocation{Name: "finish_task", Args: Args{StringArg("message", `{"read_file": {"path": "a"}}`)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := newNormalizer(FormatJSONFixedKey).Normalize(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLogsDiscardedKeys(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.New()
	logger.SetLevel(logging.LevelDebug)
	logger.SetOutput(log.New(&buf, "", 0))

	n := New(Options{Logger: logger})
	_, err := n.Normalize("a: {}\nb: {}\nc: {}")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "discarded=2")
	assert.Contains(t, buf.String(), "kept=a")
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, name := range Formats() {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.String())
	}
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("toml")
	assert.Error(t, err)
}

func TestArgsDescribe(t *testing.T) {
	t.Parallel()
	args := Args{
		StringArg("command", "ls"),
		{Key: "count", Value: 3, Text: "3"},
		{Key: "force", Value: true, Text: "true"},
		{Key: "none", Value: nil},
	}
	assert.Equal(t, "command: 'ls' count: 3 force: true none: null", args.Describe())
	assert.Equal(t, "none", args[3].Key)
	assert.Equal(t, "3", args.String("count"))
	assert.Equal(t, "", args.String("missing"))
}

func TestFixedKeySchema(t *testing.T) {
	t.Parallel()
	data, err := FixedKeySchema([]string{"read_file", "finish_task"})
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []any{"tool", "tool_args"}, schema["required"])

	props := schema["properties"].(map[string]any)
	tool := props["tool"].(map[string]any)
	assert.Equal(t, []any{"read_file", "finish_task"}, tool["enum"])
	assert.NotContains(t, string(data), "$id")
}

func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("normalizing a rendered invocation is the identity", prop.ForAll(
		func(name string, values []string) bool {
			inv := Invocation{Name: name}
			for i, v := range values {
				inv.Args = append(inv.Args, StringArg(fmt.Sprintf("arg%d", i), v))
			}
			text, err := inv.YAML()
			if err != nil {
				return false
			}
			got, err := newNormalizer(FormatYAML).Normalize(text)
			if err != nil {
				return false
			}
			if got.Name != inv.Name || len(got.Args) != len(inv.Args) {
				return false
			}
			for i := range inv.Args {
				if got.Args[i] != inv.Args[i] {
					return false
				}
			}
			return true
		},
		gen.Identifier(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("the first top-level key is kept", prop.ForAll(
		func(first, second, value string) bool {
			text := fmt.Sprintf("%s:\n  path: %s\nz%s:\n  path: other\n", first, "v"+value, second)
			got, err := newNormalizer(FormatYAML).Normalize(text)
			return err == nil && got.Name == first && got.Args.String("path") == "v"+value
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("prose falls back verbatim", prop.ForAll(
		func(a, b string) bool {
			text := "x" + a + " y" + b
			got, err := newNormalizer(FormatYAML).Normalize(text)
			return err == nil && got.Name == "finish_task" && got.Args.String(FallbackKey) == strings.TrimSpace(text)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
