package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/cli/ui"
	"github.com/dimgraph/dimgraph/internal/web/server"
)

// NewServeCommand creates the serve command
func NewServeCommand(g *globals) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket service",
		Long: `Serve the layout, port, diff, translate and render API over HTTP and
stream canvas changes to viewers at /ws/models/{modelID}.

The server stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			logger, err := g.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return g.problem(ui.DatabaseProblem(err, g.noColor))
			}

			a, err := buildApp(ctx, cfg, st, logger)
			if err != nil {
				if st != nil {
					st.Close()
				}
				return err
			}

			srv, err := server.New(cfg.Server, a.Handler(), logger.Named("server"))
			if err != nil {
				a.close()
				return err
			}
			srv.OnShutdown(a.stream.Shutdown)
			srv.OnShutdown(func(context.Context) error { return a.close() })

			if err := srv.Listen(); err != nil {
				a.close()
				return err
			}
			a.start(ctx)

			logger.Info("dimgraph ready",
				zap.String("address", srv.Addr()),
				zap.Bool("database", st != nil),
				zap.String("cache", cfg.Cache.Backend),
			)
			if err := srv.Run(ctx); err != nil {
				return err
			}
			logger.Info("dimgraph stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "override server.address")
	return cmd
}
