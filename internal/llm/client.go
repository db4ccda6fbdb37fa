// Package llm sends the system prompt and transcript to a chat model and
// returns the raw reply text.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/thruflo/attotool/internal/toolcall"
	"github.com/thruflo/attotool/internal/transcript"
)

// Request is one completion request.
type Request struct {
	Model     string
	System    string
	Messages  []transcript.Message
	MaxTokens int
	Format    toolcall.Format
	// ToolNames restricts the tool enum of the json_fixed_key schema.
	ToolNames []string
}

// Client produces a completion for a request. Implementations return the
// reply text as-is, including when it is empty.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ProviderError wraps a transport or API failure.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err for provider and model.
func NewProviderError(provider, model string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Err: err}
}

// ErrMissingAPIKey is returned when a provider needs a key and none is set.
var ErrMissingAPIKey = errors.New("API key is required")

// Options selects and configures a provider.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	// AppName and SiteURL are sent as OpenRouter attribution headers.
	AppName string
	SiteURL string
}

// New returns the client for opts.Provider. openrouter uses the
// OpenAI-compatible endpoint at BaseURL; every other provider is served
// through gollm.
func New(opts Options) (Client, error) {
	switch opts.Provider {
	case "", "openrouter":
		return NewOpenRouter(OpenRouterConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			AppName: opts.AppName,
			SiteURL: opts.SiteURL,
		})
	default:
		return NewGollm(opts.Provider, opts.APIKey), nil
	}
}
