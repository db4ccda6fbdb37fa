package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/teilomillet/gollm"

	"github.com/thruflo/attotool/internal/transcript"
)

// Gollm serves providers other than OpenRouter through gollm. The LLM is
// built on first use because gollm binds the model at construction.
type Gollm struct {
	provider string
	apiKey   string

	mu    sync.Mutex
	llm   gollm.LLM
	model string
	max   int
}

// NewGollm creates a client for provider. An empty apiKey leaves gollm to
// read the provider's own environment variable.
func NewGollm(provider, apiKey string) *Gollm {
	return &Gollm{provider: provider, apiKey: apiKey}
}

// Complete flattens the transcript into a single prompt.
func (g *Gollm) Complete(ctx context.Context, req Request) (string, error) {
	llm, err := g.client(req.Model, req.MaxTokens)
	if err != nil {
		return "", NewProviderError(g.provider, req.Model, err)
	}

	opts := []gollm.PromptOption{}
	if req.System != "" {
		opts = append(opts, gollm.WithSystemPrompt(req.System, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, gollm.WithMaxLength(req.MaxTokens))
	}
	prompt := gollm.NewPrompt(flatten(req.Messages), opts...)

	text, err := llm.Generate(ctx, prompt)
	if err != nil {
		return "", NewProviderError(g.provider, req.Model, err)
	}
	return text, nil
}

func (g *Gollm) client(model string, maxTokens int) (gollm.LLM, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.llm != nil && g.model == model && g.max == maxTokens {
		return g.llm, nil
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(g.provider),
		gollm.SetModel(model),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if maxTokens > 0 {
		opts = append(opts, gollm.SetMaxTokens(maxTokens))
	}
	if g.apiKey != "" {
		opts = append(opts, gollm.SetAPIKey(g.apiKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", g.provider, err)
	}
	g.llm, g.model, g.max = llm, model, maxTokens
	return llm, nil
}

// flatten renders the transcript as one prompt body. Assistant turns are
// marked so the model can tell its own replies apart.
func flatten(msgs []transcript.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case transcript.RoleAssistant:
			parts = append(parts, "[Assistant]: "+m.Content)
		case transcript.RoleSystem:
			parts = append(parts, "[System]: "+m.Content)
		default:
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}
