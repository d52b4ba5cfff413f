// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-compressor/internal/batch"
	"github.com/tendant/simple-compressor/internal/bus"
	"github.com/tendant/simple-compressor/internal/catalog"
	"github.com/tendant/simple-compressor/internal/compress"
	"github.com/tendant/simple-compressor/internal/metrics"
	"github.com/tendant/simple-compressor/internal/process"
	"github.com/tendant/simple-compressor/internal/server"
	"github.com/tendant/simple-compressor/internal/upload"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		fatal(logger, "load config", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("server starting", "http_addr", cfg.HTTPAddr, "media_root", cfg.MediaRoot, "catalog_backend", cfg.CatalogBackend, "nats_enabled", cfg.NATSURL != "", "mirror_enabled", cfg.mirrorEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fatal(logger, "open catalog", err, "catalog_backend", cfg.CatalogBackend)
	}
	defer closeStore()
	logger.Info("catalog ready", "catalog_backend", cfg.CatalogBackend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := batch.Deps{
		Ledger:     process.NewLedger(),
		Registry:   process.NewRegistry(),
		Store:      store,
		Layout:     catalog.Layout{Root: cfg.MediaRoot},
		Compressor: compress.New(compress.WithLogger(logger), compress.WithMetrics(m)),
		Metrics:    m,
		Logger:     logger,
		Retention:  cfg.Retention,
	}

	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, cfg.ProgressSubject)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer nc.Close()
		deps.Notifier = nc
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL, "subject", cfg.ProgressSubject)
	}

	if cfg.mirrorEnabled() {
		mirror, err := upload.NewClient(ctx, cfg.S3)
		if err != nil {
			fatal(logger, "connect to object storage", err, "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
		}
		deps.Mirror = mirror
		logger.Info("thumbnail mirror ready", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	}

	svc := batch.NewService(batch.NewRunner(deps))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(svc, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			fatal(logger, "http server", err, "addr", cfg.HTTPAddr)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("jobs did not stop in time", "err", err)
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg config) (catalog.Store, func(), error) {
	if cfg.CatalogBackend != "redis" {
		return catalog.NewFileStore(cfg.CatalogPath), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return catalog.NewRedisStore(rdb, cfg.CatalogKey), func() { _ = rdb.Close() }, nil
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
