package toolcall

import (
	"encoding/json"
	"fmt"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fixedKeyCall is the envelope of the json_fixed_key format.
type fixedKeyCall struct {
	Tool     string         `json:"tool" jsonschema:"description=Name of the tool to call"`
	ToolArgs map[string]any `json:"tool_args" jsonschema:"description=Arguments for the tool"`
}

// FixedKeySchema returns the JSON Schema of the json_fixed_key envelope.
// When names is non-empty the tool property is restricted to them.
func FixedKeySchema(names []string) ([]byte, error) {
	r := &invopop.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(&fixedKeyCall{})
	schema.Version = ""

	if len(names) > 0 {
		tool, ok := schema.Properties.Get("tool")
		if !ok {
			return nil, fmt.Errorf("failed to build schema: tool property missing")
		}
		tool.Enum = make([]any, len(names))
		for i, name := range names {
			tool.Enum[i] = name
		}
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

var (
	envelopeOnce   sync.Once
	envelopeSchema *jsonschema.Schema
	envelopeErr    error
)

// validateFixedKey checks the envelope shape only. Tool names are left to
// the registry so invented names surface as unknown-tool failures.
func validateFixedKey(payload any) error {
	envelopeOnce.Do(func() {
		data, err := FixedKeySchema(nil)
		if err != nil {
			envelopeErr = err
			return
		}
		envelopeSchema, envelopeErr = jsonschema.CompileString("fixed_key_call.json", string(data))
	})
	if envelopeErr != nil {
		return fmt.Errorf("failed to compile envelope schema: %w", envelopeErr)
	}
	return envelopeSchema.Validate(payload)
}
