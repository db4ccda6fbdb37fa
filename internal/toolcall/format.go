package toolcall

import (
	"fmt"
	"strings"
)

// Format selects how the model is asked to encode its tool call.
type Format int

const (
	// FormatYAML expects a single-key YAML mapping: `tool:\n  arg: value`.
	FormatYAML Format = iota
	// FormatJSON expects the same shape written as a JSON object.
	FormatJSON
	// FormatJSONFixedKey expects {"tool": name, "tool_args": {...}}.
	FormatJSONFixedKey
)

// String returns the flag spelling of the format.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	case FormatJSONFixedKey:
		return "json_fixed_key"
	default:
		return "unknown"
	}
}

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "json_fixed_key":
		return FormatJSONFixedKey, nil
	default:
		return FormatYAML, fmt.Errorf("unknown response format: %q (want yaml, json or json_fixed_key)", s)
	}
}

// Formats lists the accepted flag values.
func Formats() []string {
	return []string{FormatYAML.String(), FormatJSON.String(), FormatJSONFixedKey.String()}
}
