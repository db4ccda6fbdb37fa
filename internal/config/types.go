package config

// Provider names accepted in the provider field.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGroq       = "groq"
	ProviderOllama     = "ollama"
	ProviderMistral    = "mistral"
)

// Providers lists the accepted provider names.
var Providers = []string{
	ProviderOpenRouter,
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGroq,
	ProviderOllama,
	ProviderMistral,
}

// Config represents ~/.config/attotool/config.yaml. Command-line flags
// override every field.
type Config struct {
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	Provider    string `yaml:"provider"`
	MaxTokens   int    `yaml:"max_tokens"`
	Retries     int    `yaml:"retries"`
	Format      string `yaml:"format"`
	HistoryPath string `yaml:"history_path"`
}
