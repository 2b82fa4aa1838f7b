package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowgraph/ragagent/pkg/prebuilt"
	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
)

// describeConfig satisfies a prebuilt's validation without touching any
// backend; the graph is compiled only to be described.
var describeConfig = rag.Config{
	Retriever: rag.RetrieverFunc(func(context.Context, string, int) ([]rag.Document, error) { return nil, nil }),
	Generator: rag.ExtractiveGenerator{},
}

func newGraphCommand(_ *options) *cobra.Command {
	var (
		format string
		output string
		list   bool
	)
	cmd := &cobra.Command{
		Use:   "graph [name]",
		Short: "Print the structure of a prebuilt graph",
		Long: `Graph compiles a registered prebuilt and prints it as Mermaid or JSON.

Examples:
  ragagent graph
  ragagent graph retrieve_generate --format json --output graph.json
  ragagent graph --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, name := range prebuilt.DefaultRegistry.Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			name := rag.PrebuiltName
			if len(args) == 1 {
				name = args[0]
			}
			sg, err := prebuilt.DefaultRegistry.Build(cmd.Context(), name, describeConfig)
			if err != nil {
				return err
			}
			cg, err := sg.Compile()
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "mermaid":
				data = []byte(cg.Mermaid())
			case "json":
				if data, err = json.MarshalIndent(cg.Graph(), "", "  "); err != nil {
					return fmt.Errorf("encode graph: %w", err)
				}
				data = append(data, '\n')
			default:
				return fmt.Errorf("unsupported format %q (use mermaid or json)", format)
			}

			if output == "" {
				_, err = out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "graph written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "output format: mermaid, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&list, "list", false, "list registered prebuilts")
	return cmd
}
