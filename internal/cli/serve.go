package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/config"
	"github.com/abverdict/abverdict/internal/server"
	"github.com/abverdict/abverdict/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port  int
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the abverdict HTTP API.

The server provides:
  - Ad-hoc analysis at POST /api/analyze
  - Period storage and consolidation under /api/experiments
  - Health check and Prometheus metrics

Example:
  abv serve --port 8080
  abv serve --quiet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = cfg.Server.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withStore(func(s *store.SQLiteStore) error {
				srv, err := server.New(s, newRunner(s), server.Options{
					Port:      port,
					TokenFile: getTokenFilePath(),
					Logger:    logger,
				})
				if err != nil {
					return fmt.Errorf("failed to create server: %w", err)
				}
				return srv.Run(ctx, !quiet)
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on (default from config or "+config.EnvPort+")")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip the startup banner")
	return cmd
}
