// Package cli wires configuration, the model client, the loop controller
// and the front ends into the attotool command.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/attotool/internal/config"
	"github.com/thruflo/attotool/internal/llm"
	"github.com/thruflo/attotool/internal/logging"
	"github.com/thruflo/attotool/internal/loop"
	"github.com/thruflo/attotool/internal/output"
	"github.com/thruflo/attotool/internal/toolcall"
	"github.com/thruflo/attotool/internal/tools"
	"github.com/thruflo/attotool/internal/transcript"
)

// Version is set at build time via ldflags.
var Version = "dev"

// newClient builds the model client. It can be overridden in tests.
var newClient = llm.New

// flags holds the command-line values. Fields only override the config
// file when the flag was set explicitly.
type flags struct {
	model        string
	provider     string
	baseURL      string
	maxTokens    int
	input        string
	maxToolCalls int
	retries      int
	format       string
	history      string
	logFile      string
	logLevel     string

	verbose         bool
	details         bool
	disableAgentsMD bool
	yolo            bool
	cont            bool
	plan            bool
	ui              bool
}

// NewRootCommand builds the attotool command tree.
func NewRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "attotool [task]",
		Short: "A small agent that drives a model through a tool-call loop",
		Long: `attotool sends a task to a language model and executes the single
tool call the model answers with: a shell command, a file read or write, a
question for you, or a final message. Results go back to the model until it
finishes or the tool call budget runs out.

Shell commands and file writes ask for approval unless --yolo is set.

Example:
  attotool "list the Go files and summarize them"
  attotool --plan "add a --json flag to the status command"
  attotool -c "now write the tests"
  attotool --ui`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, f, args)
		},
	}
	root.Version = Version
	root.SetVersionTemplate("attotool version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&f.model, "model", config.DefaultModel, "model name")
	pf.StringVar(&f.provider, "provider", config.DefaultProvider, "model provider: openrouter, openai, anthropic, groq, ollama or mistral")
	pf.StringVar(&f.baseURL, "base-url", config.DefaultBaseURL, "OpenAI-compatible API base URL")
	pf.IntVar(&f.maxTokens, "max-tokens", config.DefaultMaxTokens, "maximum tokens per model response")
	pf.IntVar(&f.retries, "retries", config.DefaultRetries, "attempts while the model returns an empty response")
	pf.StringVar(&f.format, "format", config.DefaultFormat, "tool call format: yaml, json or json_fixed_key")
	pf.StringVar(&f.history, "history", config.DefaultHistoryPath, "transcript file")
	pf.BoolVar(&f.disableAgentsMD, "disable-agents-md", false, "do not read "+loop.InstructionsFile)
	pf.BoolVar(&f.yolo, "yolo", false, "run shell commands and file writes without asking")
	pf.BoolVarP(&f.plan, "plan", "p", false, "plan only: no shell commands or file writes")
	pf.BoolVar(&f.verbose, "verbose", false, "debug logging, same as --log-level debug")
	pf.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	fl := root.Flags()
	fl.StringVar(&f.input, "input", "", "task text, instead of the positional argument")
	fl.IntVar(&f.maxToolCalls, "max-tool-calls", 0, "stop after this many tool calls (0 means no limit)")
	fl.BoolVar(&f.details, "tool-call-details", false, "print tool results and failure details")
	fl.BoolVarP(&f.cont, "continue", "c", false, "continue the saved transcript")
	fl.BoolVar(&f.ui, "ui", false, "interactive terminal interface")
	fl.StringVar(&f.logFile, "log-file", "", "log file for the terminal interface (default: logs are discarded)")

	root.AddCommand(newPromptCommand(f), newHistoryCommand(f))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// settings is the merged result of the config file and the flags.
type settings struct {
	cfg    config.Config
	format toolcall.Format
	mode   tools.Mode
	dir    string
	prompt config.PromptTemplate
}

// resolve loads ~/.config/attotool and applies explicitly set flags.
func resolve(cmd *cobra.Command, f *flags) (*settings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	env, err := config.LoadEnvFile(home)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(env); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(home)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.Model = f.model
	}
	if changed("provider") {
		cfg.Provider = f.provider
	}
	if changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if changed("max-tokens") {
		cfg.MaxTokens = f.maxTokens
	}
	if changed("retries") {
		cfg.Retries = f.retries
	}
	if changed("format") {
		cfg.Format = f.format
	}
	if changed("history") {
		cfg.HistoryPath = f.history
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if f.maxToolCalls < 0 {
		return nil, config.ValidationError{Field: "max-tool-calls", Message: "must not be negative"}
	}

	format, err := toolcall.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	prompt, err := config.LoadPromptTemplate(home)
	if err != nil {
		return nil, err
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	return &settings{
		cfg:    *cfg,
		format: format,
		mode:   tools.Mode{Yolo: f.yolo, Plan: f.plan},
		dir:    dir,
		prompt: prompt,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// configureLogging sets the default logger's level and destination. The
// returned closer releases the log file, if one was opened.
func configureLogging(f *flags, stderr io.Writer) (io.Closer, error) {
	level, err := logging.ParseLevel(f.logLevel)
	if err != nil {
		return nil, config.ValidationError{Field: "log-level", Message: err.Error()}
	}
	if f.verbose {
		level = logging.LevelDebug
	}
	logging.SetLevel(level)

	if !f.ui {
		logging.SetWriter(stderr)
		return nopCloser{}, nil
	}
	if f.logFile == "" {
		logging.SetWriter(io.Discard)
		return nopCloser{}, nil
	}
	file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logging.SetWriter(file)
	return file, nil
}

// buildClient creates the model client for s. OpenRouter needs its key
// up front; gollm providers read their own environment variables.
func buildClient(s *settings) (llm.Client, error) {
	key := ""
	if s.cfg.Provider == config.ProviderOpenRouter {
		key = os.Getenv(config.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: set %s", llm.ErrMissingAPIKey, config.APIKeyEnv)
		}
	}
	return newClient(llm.Options{
		Provider: s.cfg.Provider,
		BaseURL:  s.cfg.BaseURL,
		APIKey:   key,
		AppName:  "attotool",
	})
}

func controllerOptions(s *settings, f *flags) loop.Options {
	logger := logging.Default()
	return loop.Options{
		Registry:        tools.NewRegistry(tools.Options{Mode: s.mode, Dir: s.dir, Logger: logger}),
		Store:           transcript.NewFileStore(s.cfg.HistoryPath),
		Output:          output.Discard{},
		Prompt:          s.prompt,
		Dir:             s.dir,
		Model:           s.cfg.Model,
		MaxTokens:       s.cfg.MaxTokens,
		Retries:         s.cfg.Retries,
		MaxToolCalls:    f.maxToolCalls,
		Format:          s.format,
		Continue:        f.cont,
		DisableAgentsMD: f.disableAgentsMD,
		Logger:          logger,
	}
}

// taskText returns the task from the positional argument or --input.
func taskText(f *flags, args []string) (string, error) {
	if len(args) > 0 && f.input != "" {
		return "", errors.New("the task argument and --input are mutually exclusive")
	}
	if len(args) > 0 {
		return args[0], nil
	}
	return f.input, nil
}
