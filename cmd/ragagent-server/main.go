// Command ragagent-server serves the agent over HTTP.
package main

import (
	"os"

	"github.com/flowgraph/ragagent/internal/cli"
)

func main() {
	if err := cli.Execute(cli.NewServerCommand()); err != nil {
		os.Exit(1)
	}
}
