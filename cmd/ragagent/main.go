// Command ragagent asks questions against a document corpus from the
// command line.
package main

import (
	"os"

	"github.com/flowgraph/ragagent/internal/cli"
)

func main() {
	if err := cli.Execute(cli.NewRootCommand()); err != nil {
		os.Exit(1)
	}
}
