package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/attotool/internal/transcript"
)

func newHistoryCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the saved transcript",
		Long: `Prints the transcript saved by the last run, one block per message.
Use --history to read a file other than the configured one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd, f)
			if err != nil {
				return err
			}

			store := transcript.NewFileStore(s.cfg.HistoryPath)
			msgs, err := store.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintf(out, "No transcript at %s\n", store.Path())
				return nil
			}
			for i, m := range msgs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "[%s]\n%s\n", m.Role, m.Content)
			}
			return nil
		},
	}
}
