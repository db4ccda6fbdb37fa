// Package transcript holds the ordered conversation log exchanged with the
// model, and the stores that snapshot it between runs.
package transcript

import (
	"fmt"
	"strings"
	"sync"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ParseRole converts a role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Message is one entry of the transcript.
type Message struct {
	Role    Role   `yaml:"role"`
	Content string `yaml:"content"`
}

// Transcript is an append-only sequence of messages. It is safe for
// concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// New creates a transcript seeded with a copy of msgs.
func New(msgs ...Message) *Transcript {
	t := &Transcript{}
	for _, m := range msgs {
		t.messages = append(t.messages, m)
	}
	return t
}

// Append adds a message to the end of the transcript. Assistant messages
// that are empty or whitespace-only are dropped; the return value reports
// whether the message was stored.
func (t *Transcript) Append(role Role, content string) bool {
	if role == RoleAssistant && strings.TrimSpace(content) == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, Message{Role: role, Content: content})
	return true
}

// Messages returns a copy of the stored messages.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the final message, or false when the transcript is empty.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
