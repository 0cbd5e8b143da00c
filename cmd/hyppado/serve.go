package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/hyppado-ingest/categories"
	"github.com/aluiziolira/hyppado-ingest/enrich"
	"github.com/aluiziolira/hyppado-ingest/export"
	"github.com/aluiziolira/hyppado-ingest/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the kalodata API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.ListenAddr = addr
			}

			enricher := enrich.NewEnricher(cfg, nil)
			svc := server.NewService(cfg, export.NewReader(cfg.ExportDir), enricher, categories.NewSource(cfg))
			srv := server.New(cfg, svc, enricher.Metrics.Registry)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("starting api",
				slog.String("export_dir", cfg.ExportDir),
				slog.String("default_range", cfg.DefaultRange),
				slog.Int("enrich_concurrency", cfg.EnrichConcurrency),
			)
			if err := srv.ListenAndServe(ctx); err != nil {
				slog.Error("http server failed", slog.Any("error", err))
				return err
			}
			slog.Info("http server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HYPPADO_LISTEN_ADDR)")
	return cmd
}
