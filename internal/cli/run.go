package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/thruflo/attotool/internal/logging"
	"github.com/thruflo/attotool/internal/loop"
	"github.com/thruflo/attotool/internal/output"
	"github.com/thruflo/attotool/internal/tui"
)

// terminalIn is the terminal the interface reads from. It can be
// overridden in tests.
var terminalIn = os.Stdin

func runRoot(cmd *cobra.Command, f *flags, args []string) error {
	task, err := taskText(f, args)
	if err != nil {
		return err
	}
	if !f.ui && task == "" {
		return errors.New("a task is required: pass it as an argument, with --input, or use --ui")
	}

	closer, err := configureLogging(f, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := resolve(cmd, f)
	if err != nil {
		return err
	}
	client, err := buildClient(s)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	opts := controllerOptions(s, f)
	opts.Client = client

	if f.ui {
		return runUI(ctx, cmd, s, opts, task)
	}
	return runCLI(ctx, cmd, f, opts, task)
}

// runCLI runs one task, asking for approvals on the command's streams.
func runCLI(ctx context.Context, cmd *cobra.Command, f *flags, opts loop.Options, task string) error {
	opts.Output = output.NewStdout(cmd.OutOrStdout(), f.details)
	opts.Prompter = loop.NewConsolePrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	out := loop.New(opts).Start(ctx, task)
	switch out.Kind {
	case loop.OutcomeFailed:
		return out.Err
	case loop.OutcomeSuspended:
		return fmt.Errorf("run suspended unexpectedly: %s", out.Suspension.Kind)
	}
	return nil
}

// runUI hands the terminal to the interactive front end.
func runUI(ctx context.Context, cmd *cobra.Command, s *settings, opts loop.Options, task string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string, tui.OutputBuffer)
	opts.Output = output.NewChannel(ctx, lines)

	app := tui.NewApp(tui.Options{
		Runner:  loop.New(opts),
		Lines:   lines,
		In:      terminalIn,
		Out:     cmd.OutOrStdout(),
		Initial: task,
		Model:   s.cfg.Model,
		Logger:  logging.Default(),
	})
	return app.Run(ctx)
}
