// Package config loads user configuration and the system prompt template
// from ~/.config/attotool.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/attotool/internal/toolcall"
)

// Default values for Config.
const (
	DefaultModel       = "mistralai/mistral-small-3.1-24b-instruct"
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultProvider    = ProviderOpenRouter
	DefaultMaxTokens   = 2000
	DefaultRetries     = 3
	DefaultFormat      = "yaml"
	DefaultHistoryPath = "history.yaml"
)

// APIKeyEnv is the environment variable holding the OpenRouter key.
const APIKeyEnv = "OPENROUTER_API_KEY"

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		BaseURL:     DefaultBaseURL,
		Provider:    DefaultProvider,
		MaxTokens:   DefaultMaxTokens,
		Retries:     DefaultRetries,
		Format:      DefaultFormat,
		HistoryPath: DefaultHistoryPath,
	}
}

// Dir returns the configuration directory under home.
func Dir(home string) string {
	return filepath.Join(home, ".config", "attotool")
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadConfig reads config.yaml from the configuration directory under home.
// If the file doesn't exist, returns default config. Missing fields keep
// their defaults.
func LoadConfig(home string) (*Config, error) {
	configPath := filepath.Join(Dir(home), "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return ValidationError{Field: "model", Message: "required field is empty"}
	}
	if !slices.Contains(Providers, cfg.Provider) {
		return ValidationError{Field: "provider", Message: fmt.Sprintf("must be one of %s", strings.Join(Providers, ", "))}
	}
	if cfg.MaxTokens <= 0 {
		return ValidationError{Field: "max_tokens", Message: "must be positive"}
	}
	if cfg.Retries < 0 {
		return ValidationError{Field: "retries", Message: "must not be negative"}
	}
	if _, err := toolcall.ParseFormat(cfg.Format); err != nil {
		return ValidationError{Field: "format", Message: err.Error()}
	}
	if cfg.HistoryPath == "" {
		return ValidationError{Field: "history_path", Message: "required field is empty"}
	}
	return nil
}

// LoadEnvFile parses the .env file in the configuration directory into a
// map of key-value pairs. The file format is KEY=VALUE per line. Lines
// starting with # are comments. A missing file yields an empty map.
func LoadEnvFile(home string) (map[string]string, error) {
	envPath := filepath.Join(Dir(home), ".env")

	file, err := os.Open(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env file line %d: missing '='", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if key == "" {
			return nil, fmt.Errorf("invalid env file line %d: empty key", lineNum)
		}
		env[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return env, nil
}

// ApplyEnv sets each variable in env that is not already set in the
// process environment.
func ApplyEnv(env map[string]string) error {
	for k, v := range env {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	return nil
}
