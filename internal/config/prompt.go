package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/attotool/internal/toolcall"
)

//go:embed system_prompt.yaml
var defaultPromptYAML []byte

// PromptTemplate holds the named sections of the system prompt.
type PromptTemplate map[string]string

// PromptInput is the per-run data substituted into the template.
type PromptInput struct {
	Dir string
	// AgentsMD includes the project-instructions section.
	AgentsMD bool
	Plan     bool
	// Tools is the rendered list of active tools.
	Tools  string
	Format toolcall.Format
}

// DefaultPromptTemplate returns the embedded template.
func DefaultPromptTemplate() (PromptTemplate, error) {
	tmpl := PromptTemplate{}
	if err := yaml.Unmarshal(defaultPromptYAML, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse default system prompt: %w", err)
	}
	return tmpl, nil
}

// LoadPromptTemplate returns the embedded template with the sections of
// system_prompt.yaml from the configuration directory under home laid over
// it key by key.
func LoadPromptTemplate(home string) (PromptTemplate, error) {
	tmpl, err := DefaultPromptTemplate()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(Dir(home), "system_prompt.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tmpl, nil
		}
		return nil, fmt.Errorf("failed to read system prompt file: %w", err)
	}

	var user PromptTemplate
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse system prompt file: %w", err)
	}
	return tmpl.Merge(user), nil
}

// Merge returns a copy of t with every key of over replacing t's value.
func (t PromptTemplate) Merge(over PromptTemplate) PromptTemplate {
	out := make(PromptTemplate, len(t)+len(over))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Render assembles the system prompt.
func (t PromptTemplate) Render(in PromptInput) string {
	currentDir := strings.ReplaceAll(t["current_dir"], "{}", in.Dir)
	agents := ""
	if in.AgentsMD {
		agents = t["agents_md"]
	}
	plan := ""
	if in.Plan {
		plan = t["plan_mode"]
	}

	out := fmt.Sprintf("%s\n\n%s\n\n%s%s%s\n\n%s\n\n%s",
		t["role_and_format"],
		t["task"],
		currentDir,
		agents,
		plan,
		strings.ReplaceAll(t["tools"], "{}", in.Tools),
		strings.TrimLeft(t["examples"], "\n"),
	)

	switch in.Format {
	case toolcall.FormatJSON:
		out += "\n\n" + t["json_format"]
	case toolcall.FormatJSONFixedKey:
		out += "\n\n" + t["json_fixed_key_format"]
	}
	return out
}
