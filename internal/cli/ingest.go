package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgraph/ragagent/internal/agent"
)

func newIngestCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index documents into the configured store",
		Long: `Ingest splits .md and .txt files into paragraphs and indexes them.

With the memory retriever the index lives only as long as the process; use
the pgvector backend to keep it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newAgent(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Config().Retriever.Backend == "memory" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: memory retriever, documents are not persisted")
			}
			total := 0
			for _, path := range args {
				docs, err := agent.LoadDocuments(path)
				if err != nil {
					return err
				}
				if err := a.Store.Index(cmd.Context(), docs); err != nil {
					return fmt.Errorf("index %s: %w", path, err)
				}
				total += len(docs)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents\n", path, len(docs))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents\n", total)
			return nil
		},
	}
}
