package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ProductCatalog/internal/catalog"
	"ProductCatalog/internal/config"
	"ProductCatalog/pkg/kit"
)

const connectTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := kit.NewLogger("catalog", "info")
		log.Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(cfg.Store, log)
	if err != nil {
		log.Fatal("open store failed", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()

	h := catalog.NewHandler(store, catalog.HTTPDeps{
		Log:               log,
		Service:           cfg.ServiceName,
		Registry:          prometheus.NewRegistry(),
		MetricsEnabled:    cfg.MetricsEnabled,
		MetricsToken:      cfg.MetricsToken,
		WriteLimitPerMin:  cfg.WriteRateLimitPerMin,
		TrustForwardedFor: cfg.TrustForwardedFor,
	})

	log.Info("store ready", zap.String("backend", cfg.Store.Backend))

	if err := kit.RunHTTPServer(cfg.Addr(), h, log, kit.ServerOptions{
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
	}); err != nil {
		log.Error("http server stopped", zap.Error(err))
	}
}

func openStore(cfg config.StoreConfig, log *zap.Logger) (catalog.Store, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := catalog.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewPostgresStore(pool, cfg.Timeout), pool.Close, nil

	case config.BackendMongo:
		client, err := catalog.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Warn("mongo disconnect failed", zap.Error(err))
			}
		}
		return catalog.NewMongoStore(client, cfg.MongoDatabase, cfg.MongoCollection, cfg.Timeout), closeFn, nil

	default:
		return catalog.NewMemStore(), func() {}, nil
	}
}
