package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/attotool/internal/config"
	"github.com/thruflo/attotool/internal/llm"
	"github.com/thruflo/attotool/internal/testutil"
	"github.com/thruflo/attotool/internal/toolcall"
	"github.com/thruflo/attotool/internal/transcript"
	"github.com/thruflo/attotool/internal/tui"
)

// These tests change HOME, the working directory and newClient, so they
// do not run in parallel.

type env struct {
	home    string
	dir     string
	client  *testutil.ScriptedClient
	options []llm.Options
}

func setup(t *testing.T, replies ...string) *env {
	t.Helper()
	e := &env{
		home:   testutil.SetupHome(t),
		dir:    t.TempDir(),
		client: testutil.NewScriptedClient(replies...),
	}
	testutil.Chdir(t, e.dir)
	t.Setenv(config.APIKeyEnv, "test-key")

	prev := newClient
	newClient = func(opts llm.Options) (llm.Client, error) {
		e.options = append(e.options, opts)
		return e.client, nil
	}
	t.Cleanup(func() { newClient = prev })
	return e
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCompletesTask(t *testing.T) {
	e := setup(t, testutil.ReplyDescribe, testutil.ReplyFinish)

	out, err := execute(t, "", "summarize the module")

	require.NoError(t, err)
	assert.Contains(t, out, "--- [describe_to_user ]")
	assert.Contains(t, out, "--- [finish_task ]")
	assert.Contains(t, out, "--- Task tool usage summary")

	msgs, err := transcript.NewFileStore(filepath.Join(e.dir, config.DefaultHistoryPath)).Load()
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "summarize the module", msgs[0].Content)

	require.Len(t, e.options, 1)
	assert.Equal(t, "test-key", e.options[0].APIKey)
	assert.Equal(t, config.ProviderOpenRouter, e.options[0].Provider)
}

func TestRunWithInputFlag(t *testing.T) {
	e := setup(t, testutil.ReplyFinish)

	_, err := execute(t, "", "--input", "from the flag")

	require.NoError(t, err)
	req := e.client.Requests()[0]
	assert.Equal(t, "from the flag", req.Messages[len(req.Messages)-1].Content)
}

func TestRunRejectsArgumentAndInput(t *testing.T) {
	setup(t)

	_, err := execute(t, "", "one", "--input", "two")

	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestRunRequiresTask(t *testing.T) {
	setup(t)

	_, err := execute(t, "")

	assert.ErrorContains(t, err, "a task is required")
}

func TestRunRequiresAPIKey(t *testing.T) {
	setup(t)
	t.Setenv(config.APIKeyEnv, "")

	_, err := execute(t, "", "task")

	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestRunReadsAPIKeyFromEnvFile(t *testing.T) {
	e := setup(t, testutil.ReplyFinish)
	require.NoError(t, os.Unsetenv(config.APIKeyEnv))
	testutil.WriteConfigFile(t, e.home, ".env", "export OPENROUTER_API_KEY=from-file\n")

	_, err := execute(t, "", "task")

	require.NoError(t, err)
	assert.Equal(t, "from-file", e.options[0].APIKey)
}

func TestConfigFileAndFlagOverrides(t *testing.T) {
	e := setup(t, testutil.ReplyFinish, testutil.ReplyFinish)
	testutil.WriteConfigFile(t, e.home, "config.yaml", "model: vendor/from-config\nmax_tokens: 300\n")

	_, err := execute(t, "", "task")
	require.NoError(t, err)
	_, err = execute(t, "", "task", "--model", "vendor/from-flag")
	require.NoError(t, err)

	reqs := e.client.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "vendor/from-config", reqs[0].Model)
	assert.Equal(t, 300, reqs[0].MaxTokens)
	assert.Equal(t, "vendor/from-flag", reqs[1].Model)
}

func TestInvalidFormatIsValidationError(t *testing.T) {
	setup(t)

	_, err := execute(t, "", "task", "--format", "xml")

	assert.True(t, config.IsValidationError(err), "got %v", err)
}

func TestJSONFormatReachesClient(t *testing.T) {
	e := setup(t, `{"finish_task": {"message": "ok"}}`)

	_, err := execute(t, "", "task", "--format", "json")

	require.NoError(t, err)
	assert.Equal(t, toolcall.FormatJSON, e.client.Requests()[0].Format)
}

func TestConsoleApprovalDeclined(t *testing.T) {
	e := setup(t, testutil.ReplyWriteNotes, testutil.ReplyFinish)

	out, err := execute(t, "n\n", "write notes")

	require.NoError(t, err)
	assert.Contains(t, out, "Do you want to write to file: notes.txt? (Y/n): ")
	assert.NoFileExists(t, filepath.Join(e.dir, "notes.txt"))
}

func TestConsoleApprovalAccepted(t *testing.T) {
	e := setup(t, testutil.ReplyWriteNotes, testutil.ReplyFinish)

	_, err := execute(t, "\n", "write notes", "--tool-call-details")

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(e.dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestYoloWritesWithoutAsking(t *testing.T) {
	e := setup(t, testutil.ReplyWriteNotes, testutil.ReplyFinish)

	out, err := execute(t, "", "write notes", "--yolo")

	require.NoError(t, err)
	assert.NotContains(t, out, "Do you want to")
	assert.FileExists(t, filepath.Join(e.dir, "notes.txt"))
}

func TestFailedRunReturnsError(t *testing.T) {
	setup(t, "", "", "")

	_, err := execute(t, "", "task")

	assert.ErrorIs(t, err, toolcall.ErrEmptyResponse)
}

func TestMaxToolCallsFlag(t *testing.T) {
	e := setup(t)
	e.client.Fallback = testutil.ReplyDescribe

	_, err := execute(t, "", "task", "--max-tool-calls", "2")

	require.NoError(t, err)
	assert.Len(t, e.client.Requests(), 2)
}

func TestContinueFlagLoadsHistory(t *testing.T) {
	e := setup(t, testutil.ReplyFinish)
	store := transcript.NewFileStore(filepath.Join(e.dir, config.DefaultHistoryPath))
	require.NoError(t, store.Save(testutil.SampleTranscript()))

	_, err := execute(t, "", "-c", "and then?")

	require.NoError(t, err)
	req := e.client.Requests()[0]
	assert.Len(t, req.Messages, len(testutil.SampleTranscript())+1)
}

func TestPromptCommand(t *testing.T) {
	e := setup(t)

	out, err := execute(t, "", "prompt", "--plan")

	require.NoError(t, err)
	assert.Contains(t, out, e.dir)
	assert.Contains(t, out, "finish_planning")
	assert.Empty(t, e.options, "prompt does not build a client")
}

func TestPromptCommandUsesOverrides(t *testing.T) {
	e := setup(t)
	testutil.WriteConfigFile(t, e.home, "system_prompt.yaml", "task: Only answer in haiku.\n")

	out, err := execute(t, "", "prompt")

	require.NoError(t, err)
	assert.Contains(t, out, "Only answer in haiku.")
}

func TestHistoryCommand(t *testing.T) {
	e := setup(t)

	out, err := execute(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No transcript")

	store := transcript.NewFileStore(filepath.Join(e.dir, "custom.yaml"))
	require.NoError(t, store.Save(testutil.SampleTranscript()))

	out, err = execute(t, "", "history", "--history", "custom.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "[user]\nwhat module is this?")
	assert.Contains(t, out, "[assistant]\n"+testutil.ReplyReadGoMod)
}

func TestVersionFlag(t *testing.T) {
	setup(t)

	out, err := execute(t, "", "--version")

	require.NoError(t, err)
	assert.Equal(t, "attotool version dev\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	setup(t)

	_, err := execute(t, "", "task", "--log-level", "loud")

	assert.True(t, config.IsValidationError(err), "got %v", err)
}

func TestUIRequiresTerminal(t *testing.T) {
	e := setup(t)
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()
	prev := terminalIn
	terminalIn = f
	t.Cleanup(func() { terminalIn = prev })

	_, err = execute(t, "", "--ui", "task")

	assert.ErrorIs(t, err, tui.ErrNotTerminal)
	assert.Empty(t, e.client.Requests())
}
