// File: cmd/serve.go
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voxctl/voxctl/internal/observability"
	"github.com/voxctl/voxctl/internal/server"
)

// serveCmd runs the HTTP front end: command submission, status, health, and
// metrics.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.GetLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h, err := buildEngine(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer h.Close()

		handler := server.NewRouter(h.orch, h.registry, log.Named("server"))
		srv := server.New(cfg.Server, handler, log.Named("server"))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx) })
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
