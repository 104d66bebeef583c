package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/opus67/skillctx/pkg/api"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the selection API server",
	Long: `Serve the selection engine over HTTP. The corpus is reloaded
automatically when skill files change on disk; POST /api/reload forces a
reload.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		shutdown, err := initTracing(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to initialize tracing")
		}
		defer shutdownTracing(shutdown)

		reg, report, err := newRegistry(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to load registry")
		}
		logger.G(ctx).WithFields(map[string]interface{}{
			"loaded":  report.Loaded,
			"skipped": len(report.Skipped),
		}).Info("corpus loaded")

		eng, err := newEngine(reg)
		if err != nil {
			return errors.Wrap(err, "failed to create engine")
		}
		prober, err := newProber()
		if err != nil {
			return errors.Wrap(err, "invalid mcp server configuration")
		}

		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		server, err := api.NewServer(&api.ServerConfig{Host: host, Port: port}, reg, eng, prober)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.Start(gctx)
		})
		if viper.GetBool("watch") {
			watcher, err := registry.NewWatcher(reg, 500*time.Millisecond)
			if err != nil {
				logger.G(ctx).WithError(err).Warn("corpus watching disabled")
			} else {
				g.Go(func() error {
					return watcher.Start(gctx)
				})
			}
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind")
	serveCmd.Flags().Int("port", 8067, "Port to listen on")
	serveCmd.Flags().Bool("watch", true, "Reload the corpus on file changes")
	_ = viper.BindPFlag("watch", serveCmd.Flags().Lookup("watch"))
}
