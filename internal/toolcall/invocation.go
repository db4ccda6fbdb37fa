package toolcall

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Arg is one named argument of a tool call. Value holds the decoded scalar
// (string, int, float64, bool or nil); Text holds the literal form used
// when the tool consumes the argument.
type Arg struct {
	Key   string
	Value any
	Text  string
}

// StringArg builds an Arg holding a string.
func StringArg(key, value string) Arg {
	return Arg{Key: key, Value: value, Text: value}
}

// Args is an ordered argument list.
type Args []Arg

// Get returns the argument stored under key.
func (a Args) Get(key string) (Arg, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg, true
		}
	}
	return Arg{}, false
}

// String returns the literal text of key, or "" when absent.
func (a Args) String(key string) string {
	arg, ok := a.Get(key)
	if !ok {
		return ""
	}
	return arg.Text
}

// Describe renders the arguments the way failure markers show them:
// strings as key: 'value', everything else as key: <yaml>, space separated.
func (a Args) Describe() string {
	parts := make([]string, 0, len(a))
	for _, arg := range a {
		if s, ok := arg.Value.(string); ok {
			parts = append(parts, fmt.Sprintf("%s: '%s'", arg.Key, s))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", arg.Key, yamlScalar(arg.Value)))
	}
	return strings.Join(parts, " ")
}

func yamlScalar(v any) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(string(data))
}

// Invocation is a single tool call selected by the model.
type Invocation struct {
	Name string
	Args Args
}

// YAML renders the invocation in the canonical single-key form accepted by
// the yaml format.
func (inv Invocation) YAML() (string, error) {
	args := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, arg := range inv.Args {
		var value yaml.Node
		if err := value.Encode(arg.Value); err != nil {
			return "", fmt.Errorf("failed to encode argument %s: %w", arg.Key, err)
		}
		args.Content = append(args.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: arg.Key},
			&value,
		)
	}
	root := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: inv.Name},
			args,
		},
	}
	data, err := yaml.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("failed to marshal invocation: %w", err)
	}
	return string(data), nil
}
