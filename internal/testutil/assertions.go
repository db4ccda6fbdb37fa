package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thruflo/attotool/internal/transcript"
)

// AssertNoBlankAssistant fails if msgs holds an empty or whitespace-only
// assistant message.
func AssertNoBlankAssistant(t *testing.T, msgs []transcript.Message) {
	t.Helper()
	for i, m := range msgs {
		if m.Role == transcript.RoleAssistant && strings.TrimSpace(m.Content) == "" {
			assert.Failf(t, "blank assistant message", "message %d is blank", i)
		}
	}
}

// AssertNoDuplicateAdjacent fails if two consecutive messages are equal.
func AssertNoDuplicateAdjacent(t *testing.T, msgs []transcript.Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if msgs[i] == msgs[i-1] {
			assert.Failf(t, "duplicate message", "messages %d and %d are identical: %q", i-1, i, msgs[i].Content)
		}
	}
}

// ContentsOf returns the content of every message.
func ContentsOf(msgs []transcript.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
