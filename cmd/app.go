package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/barcode"
	"shelf-meta-srv/internal/catalog"
	"shelf-meta-srv/internal/config"
	"shelf-meta-srv/internal/database"
	"shelf-meta-srv/internal/logging"
	"shelf-meta-srv/internal/serp"
)

// app holds the wired services of one process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *database.Store
	metadata *catalog.Resolver
	barcodes *barcode.Resolver
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := database.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	adapters := catalog.Adapters(ctx, cfg.Catalog(), logger.Named("catalog"))
	providers := serp.Chain(cfg.SerpKeys, cfg.Serp(logger.Named("serp")))
	if len(providers) == 0 {
		logger.Warn("no search provider key is set, barcode names cannot be resolved")
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		metadata: catalog.NewResolver(store, adapters, cfg.CatalogTimeout, logger.Named("catalog")),
		barcodes: barcode.NewResolver(store, providers, cfg.ProviderTimeout, logger.Named("barcode")),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
