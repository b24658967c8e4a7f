package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"archivist/internal/analyze"
	"archivist/internal/api"
	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/download"
	"archivist/internal/extract"
	"archivist/internal/facets"
	"archivist/internal/metrics"
	"archivist/internal/mirror"
	"archivist/internal/pipeline"
	"archivist/internal/search"
	"archivist/internal/services/objectstore"
	"archivist/internal/services/ocr"
	"archivist/internal/stage"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.API.Bind = bind
			}
			return ctx.withStore(func(store *catalog.Store) error {
				server, err := buildServer(cfg, store, logger)
				if err != nil {
					return err
				}
				if err := server.Start(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", server.Addr())
				<-cmd.Context().Done()
				server.Stop()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default api.bind)")
	return cmd
}

// buildServer wires the read side, metrics, and stage health into the API.
func buildServer(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*api.Server, error) {
	recorder := metrics.NewRecorder()
	engine := search.NewEngine(store, cfg.Search, search.WithObserver(recorder), search.WithLogger(logger))
	cache := facets.NewCache(facets.NewAggregator(store.DB()), cfg.FacetTTL(), facets.WithObserver(recorder))

	handlers, mirrorURL := healthHandlers(cfg, logger)
	exec := pipeline.NewExecutor(store, logger, handlers, pipeline.WithObserver(recorder))

	return api.NewServer(cfg, api.Deps{
		Store:     store,
		Search:    engine,
		Facets:    cache,
		Metrics:   recorder,
		Health:    exec.Health,
		MirrorURL: mirrorURL,
		Reocr: func(ctx context.Context, nodeID int64) (*catalog.Item, error) {
			return extract.Reocr(ctx, exec, store, nodeID)
		},
	}, logger)
}

// healthHandlers builds every stage handler for readiness reporting. Stages
// missing credentials are still listed so /healthz shows them as not ready.
func healthHandlers(cfg *config.Config, logger *slog.Logger) ([]stage.Handler, func(string) string) {
	tools := ocr.New(cfg.OCR)
	handlers := []stage.Handler{
		download.New(cfg, nil, logger),
		extract.New(cfg, tools, logger),
		extract.NewStream(cfg, nil, tools, logger),
	}
	if analyzer, err := analyze.NewFromConfig(cfg, logger); err == nil {
		handlers = append(handlers, analyzer)
	} else {
		handlers = append(handlers, analyze.New(cfg.Analysis, analyze.NewChain(), logger))
	}

	var mirrorURL func(string) string
	if cfg.MirrorConfigured() {
		if bucket, err := objectstore.New(cfg); err == nil {
			handlers = append(handlers, mirror.New(cfg, bucket, nil, logger))
			mirrorURL = bucket.PublicURL
		}
	}
	if mirrorURL == nil {
		handlers = append(handlers, mirror.New(cfg, nil, nil, logger))
	}
	return handlers, mirrorURL
}
