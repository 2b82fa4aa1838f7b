package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(o *options) *cobra.Command {
	var (
		threadID    string
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question",
		Long: `Ask runs one retrieve/generate turn and prints the answer.

Examples:
  ragagent ask --corpus ./docs "What is a superstep?"
  ragagent ask --thread chat-1 "And how are updates merged?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newAgent(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.Ask(cmd.Context(), threadID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Answer)
			if showSources {
				for i, d := range ans.Documents {
					fmt.Fprintf(out, "  [%d] %s (%.3f)\n", i+1, d.ID, d.Score)
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "thread: %s\n", ans.ThreadID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "conversation thread; a new one is started when empty")
	cmd.Flags().BoolVar(&showSources, "sources", false, "list the retrieved documents")
	return cmd
}
