package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/flowgraph/ragagent/internal/agent"
	"github.com/flowgraph/ragagent/internal/server"
)

func newServeCommand(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Long: `Serve exposes ask, ingest, thread state and graph endpoints plus /healthz,
/metrics, /debug/vars and /debug/pprof/. It stops gracefully on SIGINT or
SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log, err := o.logger(cmd, cfg)
			if err != nil {
				return err
			}
			a, err := agent.New(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("build agent: %w", err)
			}
			defer a.Close()

			err = server.New(a, log).ListenAndServe(cmd.Context(), cfg.Server.Addr, cfg.Server.ShutdownTimeout)
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			if err == nil {
				log.Info("server stopped", slog.String("addr", cfg.Server.Addr))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
