package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/thruflo/attotool/internal/toolcall"
	"github.com/thruflo/attotool/internal/transcript"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	AppName string
	SiteURL string
	// HTTPClient overrides the transport. The attribution headers are added
	// on top of it.
	HTTPClient *http.Client
}

// OpenRouter talks to any OpenAI-compatible chat-completions endpoint.
type OpenRouter struct {
	client *openai.Client
}

// NewOpenRouter creates a client. The API key is required.
func NewOpenRouter(cfg OpenRouterConfig) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, NewProviderError("openrouter", "", ErrMissingAPIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base:    base,
			appName: cfg.AppName,
			siteURL: cfg.SiteURL,
		},
	}

	return &OpenRouter{client: openai.NewClientWithConfig(clientConfig)}, nil
}

// Complete sends the system prompt followed by the transcript.
func (p *OpenRouter) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toChatMessages(req.System, req.Messages),
		MaxTokens: req.MaxTokens,
	}

	format, err := responseFormat(req.Format, req.ToolNames)
	if err != nil {
		return "", NewProviderError("openrouter", req.Model, err)
	}
	chatReq.ResponseFormat = format

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", NewProviderError("openrouter", req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func toChatMessages(system string, msgs []transcript.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case transcript.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case transcript.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func responseFormat(format toolcall.Format, toolNames []string) (*openai.ChatCompletionResponseFormat, error) {
	switch format {
	case toolcall.FormatJSON:
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}, nil
	case toolcall.FormatJSONFixedKey:
		schema, err := toolcall.FixedKeySchema(toolNames)
		if err != nil {
			return nil, err
		}
		return &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "tool_call",
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		}, nil
	default:
		return nil, nil
	}
}

type headerTransport struct {
	base    http.RoundTripper
	appName string
	siteURL string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.appName == "" && t.siteURL == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	if t.appName != "" {
		clone.Header.Set("X-Title", t.appName)
	}
	if t.siteURL != "" {
		clone.Header.Set("HTTP-Referer", t.siteURL)
	}
	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		return nil, fmt.Errorf("openrouter transport: %w", err)
	}
	return resp, nil
}
