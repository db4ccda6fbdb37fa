// Package tools defines the closed set of tools the model may call, the
// approval policy around them, and their execution.
package tools

import (
	"fmt"
	"strings"
)

// Tool identifies one member of the tool set.
type Tool int

const (
	// Unknown stands for any name the model invents.
	Unknown Tool = iota
	ExecuteShellCommand
	ReadFile
	WriteFile
	AskForClarification
	DescribeToUser
	FinishTask
	FinishPlanning
)

var allTools = []Tool{
	ExecuteShellCommand,
	ReadFile,
	WriteFile,
	AskForClarification,
	DescribeToUser,
	FinishTask,
	FinishPlanning,
}

// Param describes one tool parameter for the system prompt.
type Param struct {
	Name string
	Type string
}

// Parse maps a tool name to a Tool. Unrecognized names return Unknown.
func Parse(name string) Tool {
	for _, t := range allTools {
		if t.String() == name {
			return t
		}
	}
	return Unknown
}

// String returns the name the model uses for the tool.
func (t Tool) String() string {
	switch t {
	case ExecuteShellCommand:
		return "execute_shell_command"
	case ReadFile:
		return "read_file"
	case WriteFile:
		return "write_file"
	case AskForClarification:
		return "ask_for_clarification"
	case DescribeToUser:
		return "describe_to_user"
	case FinishTask:
		return "finish_task"
	case FinishPlanning:
		return "finish_planning"
	default:
		return "unknown"
	}
}

// Description is the one-line summary shown to the model.
func (t Tool) Description() string {
	switch t {
	case ExecuteShellCommand:
		return "Executes a command with arguments on the shell - includes common tools like ls, pwd, curl, cat, mkdir"
	case ReadFile:
		return "Reads a file on the local filesystem"
	case WriteFile:
		return "Writes a file on the local filesystem"
	case AskForClarification:
		return "Allows the assistant to ask the user for clarification on a point of interest"
	case DescribeToUser:
		return "Provides a description or response to the user"
	case FinishTask:
		return "Marks the assigned task as completed, with a completion message"
	case FinishPlanning:
		return "Marks the plan as complete, with the plan as the message"
	default:
		return ""
	}
}

// Parameters lists the arguments the tool accepts, in prompt order.
func (t Tool) Parameters() []Param {
	switch t {
	case ExecuteShellCommand:
		return []Param{{"command", "string"}, {"args", "string"}}
	case ReadFile:
		return []Param{{"path", "string"}}
	case WriteFile:
		return []Param{{"path", "string"}, {"content", "string"}}
	case AskForClarification:
		return []Param{{"question", "string"}}
	case DescribeToUser:
		return []Param{{"description", "string"}}
	case FinishTask, FinishPlanning:
		return []Param{{"message", "string"}}
	default:
		return nil
	}
}

// PrimaryKey names the argument that identifies a call in logs and
// summaries. Tools without one return "".
func (t Tool) PrimaryKey() string {
	switch t {
	case ExecuteShellCommand:
		return "command"
	case ReadFile, WriteFile:
		return "path"
	default:
		return ""
	}
}

// Mutating reports whether the tool changes the machine it runs on.
func (t Tool) Mutating() bool {
	return t == ExecuteShellCommand || t == WriteFile
}

// IsFinish reports whether calling the tool ends the run.
func (t Tool) IsFinish() bool {
	return t == FinishTask || t == FinishPlanning
}

// Format renders the tool for the system prompt.
func (t Tool) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: '%s'", t, t.Description())
	for _, p := range t.Parameters() {
		fmt.Fprintf(&sb, "\n  %s: %s", p.Name, p.Type)
	}
	return sb.String()
}

// PrimaryArgumentKey returns the primary key for a tool name, or "" for
// unknown tools and tools without one.
func PrimaryArgumentKey(name string) string {
	return Parse(name).PrimaryKey()
}
