// Package cli implements the ragagent command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowgraph/ragagent/internal/agent"
	"github.com/flowgraph/ragagent/internal/config"
	"github.com/flowgraph/ragagent/internal/logging"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type options struct {
	configFile string
	envFile    string
	logLevel   string
	corpus     string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "ragagent",
		Short: "Retrieve-then-generate question answering agent",
		Long: `ragagent answers questions by retrieving documents and generating an answer
from them. Conversations are checkpointed per thread, so follow-up questions
see the earlier turns.

Settings come from defaults, --config (YAML), --env-file and RAGAGENT_*
environment variables, in that order.`,
		SilenceUsage: true,
	}
	o.bindFlags(root)

	root.AddCommand(
		newAskCommand(o),
		newIngestCommand(o),
		newServeCommand(o),
		newGraphCommand(o),
		newHistoryCommand(o),
		newDBCommand(o),
		newVersionCommand(),
	)
	return root
}

// NewServerCommand builds the standalone HTTP server command.
func NewServerCommand() *cobra.Command {
	o := &options{}
	cmd := newServeCommand(o)
	cmd.Use = "ragagent-server"
	cmd.SilenceUsage = true
	o.bindFlags(cmd)
	return cmd
}

// Execute runs cmd until it finishes or the process is interrupted.
func Execute(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.ExecuteContext(ctx)
}

func (o *options) bindFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.configFile, "config", "c", "", "YAML config file")
	pf.StringVar(&o.envFile, "env-file", ".env", "dotenv file, ignored when missing")
	pf.StringVar(&o.logLevel, "log-level", "", "override log.level")
	pf.StringVar(&o.corpus, "corpus", "", "file or directory indexed at startup (overrides retriever.corpus)")
}

func (o *options) loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.Options{File: o.configFile, EnvFile: o.envFile})
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.corpus != "" {
		cfg.Retriever.Corpus = o.corpus
	}
	return cfg, nil
}

func (o *options) logger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, error) {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cmd.ErrOrStderr()})
}

// newAgent loads configuration and builds the agent. Callers must Close it.
func (o *options) newAgent(cmd *cobra.Command) (*agent.Agent, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := o.logger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	a, err := agent.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}
	return a, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragagent %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		},
	}
}
