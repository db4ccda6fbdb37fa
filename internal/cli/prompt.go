package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/attotool/internal/loop"
)

func newPromptCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt",
		Long: `Prints the system prompt that would be sent to the model in the current
directory, including overrides from ~/.config/attotool/system_prompt.yaml
and the effect of --plan, --yolo, --format and --disable-agents-md.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd, f)
			if err != nil {
				return err
			}
			ctrl := loop.New(controllerOptions(s, f))
			fmt.Fprintln(cmd.OutOrStdout(), ctrl.SystemPrompt())
			return nil
		},
	}
}
