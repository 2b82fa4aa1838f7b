package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/pkg/flowgraph"
)

func newHistoryCommand(o *options) *cobra.Command {
	var (
		threadID   string
		limit      int
		transcript bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the checkpoints of a thread",
		Long: `History lists a thread's checkpoints, newest first. With --transcript it
prints the conversation of the latest checkpoint instead.

Threads outlive the process only with the sqlite or postgres checkpoint
backends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.newAgent(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()

			if transcript {
				st, err := a.Graph.GetState(cmd.Context(), threadID)
				if err != nil {
					return err
				}
				msgs, err := flowgraph.Messages(st.State)
				if err != nil {
					return err
				}
				fmt.Fprint(out, message.Text(msgs))
				return nil
			}

			hist, err := a.Graph.History(cmd.Context(), threadID, limit)
			if err != nil {
				return err
			}
			if len(hist) == 0 {
				return fmt.Errorf("thread %s: %w", threadID, flowgraph.ErrThreadNotFound)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tSOURCE\tNEXT\tMESSAGES\tCHECKPOINT")
			for _, st := range hist {
				msgs, _ := flowgraph.Messages(st.State)
				next := strings.Join(st.Next, ",")
				if next == "" {
					next = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", st.Step, st.Source, next, len(msgs), st.CheckpointID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "thread ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum checkpoints listed, 0 for all")
	cmd.Flags().BoolVar(&transcript, "transcript", false, "print the conversation instead")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}
