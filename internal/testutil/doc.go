// Package testutil provides shared test utilities for attotool.
//
// # Fixtures
//
// fixtures.go holds canned model replies (ReplyReadGoMod, ReplyFinish,
// ReplyProse and friends), sample file contents and SampleTranscript.
//
// # Fakes
//
//   - ScriptedClient replays model replies in order and records requests
//   - RecordingPrinter keeps every output event
//   - ScriptedPrompter answers approvals and clarifications from lists
//
// # Environment Helpers
//
//   - SetupHome(t) points HOME at a temp directory
//   - WriteConfigFile(t, home, name, content) writes into ~/.config/attotool
//   - WriteTestFile(t, base, path, content) writes a file in a test dir
//   - Chdir(t, dir) changes directory for the rest of the test
//
// # Timeouts
//
//   - ContextWithTestDeadline(t, fallback) respects the test deadline
//   - RunContext(t) bounds one scripted controller run
//
// # Assertions
//
//   - AssertNoBlankAssistant and AssertNoDuplicateAdjacent check
//     transcript invariants
package testutil
