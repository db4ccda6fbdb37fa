// Package toolcall turns free-text model responses into a single validated
// tool invocation.
package toolcall

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/thruflo/attotool/internal/logging"
)

// ErrEmptyResponse is returned for empty or whitespace-only model output.
// Callers treat it as retryable.
var ErrEmptyResponse = errors.New("empty model response")

// FallbackKey is the argument that carries unparseable text into the
// finish tool.
const FallbackKey = "message"

// Options configures a Normalizer.
type Options struct {
	Format Format
	// FinishTool receives text that cannot be parsed as a tool call.
	FinishTool string
	// ScalarKey names the argument a bare scalar value is stored under for
	// the given tool. An empty result rejects the scalar.
	ScalarKey func(tool string) string
	Logger    *logging.Logger
}

// Normalizer converts model text into an Invocation.
type Normalizer struct {
	format     Format
	finishTool string
	scalarKey  func(string) string
	logger     *logging.Logger
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		format:     opts.Format,
		finishTool: opts.FinishTool,
		scalarKey:  opts.ScalarKey,
		logger:     opts.Logger,
	}
	if n.finishTool == "" {
		n.finishTool = "finish_task"
	}
	if n.scalarKey == nil {
		n.scalarKey = func(string) string { return "" }
	}
	if n.logger == nil {
		n.logger = logging.Nop()
	}
	return n
}

// Normalize produces exactly one invocation from text. Text that cannot be
// parsed, even after retrying on the part before the first blank line,
// becomes a call to the finish tool carrying the trimmed text. The only
// error is ErrEmptyResponse.
func (n *Normalizer) Normalize(text string) (Invocation, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Invocation{}, ErrEmptyResponse
	}

	if inv, ok := n.parse(trimmed); ok {
		return inv, nil
	}

	if idx := strings.Index(trimmed, "\n\n"); idx > 0 {
		prefix := strings.TrimSpace(trimmed[:idx])
		if inv, ok := n.parse(prefix); ok {
			n.logger.Debug("parsed tool call from prefix", "tool", inv.Name, "dropped_bytes", len(trimmed)-idx)
			return inv, nil
		}
	}

	n.logger.Debug("falling back to finish tool", "tool", n.finishTool, "format", n.format.String())
	return Invocation{
		Name: n.finishTool,
		Args: Args{StringArg(FallbackKey, trimmed)},
	}, nil
}

func (n *Normalizer) parse(text string) (Invocation, bool) {
	switch n.format {
	case FormatJSON:
		if !strings.HasPrefix(text, "{") {
			return Invocation{}, false
		}
		return n.parseMapping(text)
	case FormatJSONFixedKey:
		return n.parseFixedKey(text)
	default:
		return n.parseMapping(text)
	}
}

// parseMapping reads a single-key mapping through the YAML node tree so
// that document order decides which key wins.
func (n *Normalizer) parseMapping(text string) (Invocation, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return Invocation{}, false
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Invocation{}, false
	}
	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode || len(root.Content) < 2 {
		return Invocation{}, false
	}
	if pairs := len(root.Content) / 2; pairs > 1 {
		n.logger.Debug("discarding extra top-level keys", "kept", root.Content[0].Value, "discarded", pairs-1)
	}

	keyNode := resolve(root.Content[0])
	if keyNode.Kind != yaml.ScalarNode || keyNode.Value == "" {
		return Invocation{}, false
	}
	name := keyNode.Value

	args, ok := n.nodeArgs(name, resolve(root.Content[1]))
	if !ok {
		return Invocation{}, false
	}
	return Invocation{Name: name, Args: args}, true
}

func (n *Normalizer) nodeArgs(name string, value *yaml.Node) (Args, bool) {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.ShortTag() == "!!null" {
			return nil, true
		}
		key := n.scalarKey(name)
		if key == "" {
			return nil, false
		}
		arg, ok := scalarArg(key, value)
		if !ok {
			return nil, false
		}
		return Args{arg}, true

	case yaml.MappingNode:
		var args Args
		seen := make(map[string]bool)
		for i := 0; i+1 < len(value.Content); i += 2 {
			k := resolve(value.Content[i])
			if k.Kind != yaml.ScalarNode {
				return nil, false
			}
			if seen[k.Value] {
				continue
			}
			seen[k.Value] = true

			v := resolve(value.Content[i+1])
			if v.Kind == yaml.ScalarNode {
				arg, ok := scalarArg(k.Value, v)
				if !ok {
					return nil, false
				}
				args = append(args, arg)
				continue
			}
			text, err := yaml.Marshal(v)
			if err != nil {
				return nil, false
			}
			s := strings.TrimSpace(string(text))
			args = append(args, StringArg(k.Value, s))
		}
		return args, true
	}
	return nil, false
}

func scalarArg(key string, node *yaml.Node) (Arg, bool) {
	if node.ShortTag() == "!!str" {
		return StringArg(key, node.Value), true
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return Arg{}, false
	}
	text := node.Value
	if v == nil {
		text = ""
	}
	return Arg{Key: key, Value: v, Text: text}, true
}

func resolve(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func (n *Normalizer) parseFixedKey(text string) (Invocation, bool) {
	var payload any
	if err := json5.Unmarshal([]byte(text), &payload); err != nil {
		return Invocation{}, false
	}
	if err := validateFixedKey(payload); err != nil {
		n.logger.Debug("fixed-key response failed validation", "error", err)
		return Invocation{}, false
	}

	obj := payload.(map[string]any)
	name, _ := obj["tool"].(string)
	if name == "" {
		return Invocation{}, false
	}
	rawArgs, _ := obj["tool_args"].(map[string]any)

	keys := make([]string, 0, len(rawArgs))
	for k := range rawArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args Args
	for _, k := range keys {
		arg, ok := jsonArg(k, rawArgs[k])
		if !ok {
			return Invocation{}, false
		}
		args = append(args, arg)
	}
	return Invocation{Name: name, Args: args}, true
}

func jsonArg(key string, v any) (Arg, bool) {
	switch val := v.(type) {
	case string:
		return StringArg(key, val), true
	case nil:
		return Arg{Key: key}, true
	case bool:
		return Arg{Key: key, Value: val, Text: strconv.FormatBool(val)}, true
	case float64:
		if val == float64(int64(val)) {
			i := int(val)
			return Arg{Key: key, Value: i, Text: strconv.Itoa(i)}, true
		}
		return Arg{Key: key, Value: val, Text: strconv.FormatFloat(val, 'f', -1, 64)}, true
	default:
		data, err := yaml.Marshal(val)
		if err != nil {
			return Arg{}, false
		}
		return StringArg(key, strings.TrimSpace(string(data))), true
	}
}
