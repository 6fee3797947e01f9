package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/cli/config"
	"github.com/dimgraph/dimgraph/internal/cli/ui"
	"github.com/dimgraph/dimgraph/internal/store"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Apply pending schema migrations to the database named by database.url.
Applied migrations are recorded and never run twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, g, func(ctx context.Context, st *store.Store) error {
				ran, err := st.Migrate(ctx)
				for _, m := range ran {
					ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d %s", m.Version, m.Name), g.noColor)
				}
				if err != nil {
					return g.problem(ui.DatabaseProblem(err, g.noColor))
				}
				if len(ran) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				}
				return nil
			})
		},
	}
	cmd.AddCommand(newMigrateStatusCommand(g))
	return cmd
}

func newMigrateStatusCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, g, func(ctx context.Context, st *store.Store) error {
				applied, err := st.Status(ctx)
				if err != nil {
					// the migrations table does not exist before the first run
					applied = nil
				}
				done := make(map[int64]store.Applied, len(applied))
				for _, a := range applied {
					done[a.Version] = a
				}

				t := ui.NewTable(cmd.OutOrStdout(), g.noColor, "VERSION", "NAME", "STATUS", "APPLIED AT")
				pending := 0
				for _, m := range store.Migrations() {
					if a, ok := done[m.Version]; ok {
						t.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "applied", a.AppliedAt.Format(time.RFC3339))
						continue
					}
					pending++
					t.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "pending", "-")
				}
				t.Render()
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d applied, %d pending\n", len(store.Migrations())-pending, pending)
				return nil
			})
		},
	}
}

// withStore opens the configured database for the duration of fn
func withStore(cmd *cobra.Command, g *globals, fn func(ctx context.Context, st *store.Store) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return g.problem(ui.ConfigProblem(fmt.Errorf("database.url is not set"), g.noColor))
	}
	logger, err := g.logger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	// the migrate commands apply migrations explicitly
	dbCfg := *cfg
	dbCfg.Database = config.DatabaseConfig{Driver: cfg.Database.Driver, URL: cfg.Database.URL}

	st, err := openStore(cmd.Context(), &dbCfg, logger)
	if err != nil {
		return g.problem(ui.DatabaseProblem(err, g.noColor))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()
	return fn(cmd.Context(), st)
}
