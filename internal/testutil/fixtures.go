package testutil

import "github.com/thruflo/attotool/internal/transcript"

// Model replies in the yaml response format.
const (
	ReplyReadGoMod        = "read_file:\n  path: go.mod\n"
	ReplyListFiles        = "execute_shell_command:\n  command: ls\n  args: -la\n"
	ReplyWriteNotes       = "write_file:\n  path: notes.txt\n  content: hello\n"
	ReplyAskBranch        = "ask_for_clarification:\n  question: Which branch should I use?\n"
	ReplyDescribe         = "describe_to_user:\n  description: The module has two packages.\n"
	ReplyFinish           = "finish_task:\n  message: Done.\n"
	ReplyFinishPlanning   = "finish_planning:\n  message: 1. Read go.mod\n"
	ReplyUnknownTool      = "run_tests:\n  pkg: ./...\n"
	ReplyProse            = "hello there"
	ReplyMultipleTools    = "read_file:\n  path: a.go\nwrite_file:\n  path: b.go\nfinish_task:\n  message: c\n"
	ReplyWithTrailingText = "read_file:\n  path: go.mod\n\nReading: it: now"
)

// SampleGoMod is a small go.mod used as file content in tests.
const SampleGoMod = "module example.com/demo\n\ngo 1.24\n"

// SampleInstructions is AGENTS.md content used in tests.
const SampleInstructions = "# Rules\n- Keep changes small.\n"

// SampleTranscript returns a short saved conversation.
func SampleTranscript() []transcript.Message {
	return []transcript.Message{
		{Role: transcript.RoleUser, Content: "what module is this?"},
		{Role: transcript.RoleAssistant, Content: ReplyReadGoMod},
		{Role: transcript.RoleUser, Content: "[read_file go.mod]\n" + SampleGoMod},
		{Role: transcript.RoleAssistant, Content: ReplyFinish},
		{Role: transcript.RoleUser, Content: "[finish_task ]\nTask completed: Done."},
	}
}
