package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgraph/ragagent/internal/adapters/embedding/hash"
	"github.com/flowgraph/ragagent/internal/adapters/repository/postgres"
	"github.com/flowgraph/ragagent/internal/adapters/vectorstore/pgvector"
)

func newDBCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.AddCommand(newDBInitCommand(o))
	return cmd
}

func newDBInitCommand(o *options) *cobra.Command {
	var (
		createDB string
		adminURL string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the document and checkpoint tables",
		Long: `Init prepares database.url for the pgvector retriever and the postgres
checkpointer: it enables the vector extension and creates both tables.

With --create-database the database is first created through --admin-url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is required (set RAGAGENT_DATABASE_URL or DATABASE_URL)")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if createDB != "" {
				if adminURL == "" {
					return errors.New("--admin-url is required with --create-database")
				}
				created, err := pgvector.EnsureDatabase(ctx, adminURL, createDB)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(out, "created database %s\n", createDB)
				} else {
					fmt.Fprintf(out, "database %s exists\n", createDB)
				}
			}

			pool, err := postgres.NewPool(ctx, cfg.Database.URL, postgres.PoolConfig{
				MaxConns: cfg.Database.MaxConns,
				MinConns: cfg.Database.MinConns,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			// The schema depends only on the vector size.
			emb, err := hash.New(cfg.Retriever.Dimensions)
			if err != nil {
				return err
			}
			store, err := pgvector.New(pool, emb, pgvector.Options{
				Table:      cfg.Retriever.Table,
				Dimensions: cfg.Retriever.Dimensions,
				Threshold:  cfg.Retriever.Threshold,
			})
			if err != nil {
				return err
			}
			if err := store.InitializeSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "table %s ready (vector(%d))\n", cfg.Retriever.Table, cfg.Retriever.Dimensions)

			if err := postgres.NewCheckpointSaver(pool, nil).CreateTables(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "table checkpoints ready")
			return nil
		},
	}
	cmd.Flags().StringVar(&createDB, "create-database", "", "create this database first")
	cmd.Flags().StringVar(&adminURL, "admin-url", "", "connection URL used to create the database")
	return cmd
}
