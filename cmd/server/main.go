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

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/invoicer/internal/cache"
	"github.com/muandane/special-stack/invoicer/internal/config"
	"github.com/muandane/special-stack/invoicer/internal/documents"
	"github.com/muandane/special-stack/invoicer/internal/invoice"
	"github.com/muandane/special-stack/invoicer/internal/render"
	"github.com/muandane/special-stack/invoicer/internal/router"
	"github.com/muandane/special-stack/invoicer/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.LogLevel}))
	slog.SetDefault(logger)
	if cfg.Server.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	cacheCfg := cfg.Cache
	cacheCfg.Logger = logger.With("component", "cache")
	docCache := cache.New(cacheCfg)
	cacheMetrics := metrics.NewSet()
	docCache.RegisterMetrics(cacheMetrics)

	renderer, err := render.NewHTTPRenderer(render.HTTPRendererOptions{
		Endpoint: cfg.Render.Endpoint,
		Timeout:  cfg.Render.Timeout,
		Rate:     cfg.Render.Rate,
		Burst:    cfg.Render.Burst,
		Logger:   logger.With("component", "render"),
	})
	if err != nil {
		return err
	}

	docs, err := documents.NewService(documents.Options{
		Store:               store,
		Cache:               docCache,
		Renderer:            renderer,
		Logger:              logger.With("component", "documents"),
		PrefetchConcurrency: cfg.Server.PrefetchConcurrency,
	})
	if err != nil {
		return err
	}

	engine := router.NewRouter(logger).Setup(router.Options{
		Store:          store,
		Documents:      docs,
		CacheMetrics:   cacheMetrics,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.Server.Port,
			"storage", cfg.Storage.Backend,
			"cache_max_bytes", cfg.Cache.MaxTotalSizeBytes,
			"cache_max_entries", cfg.Cache.MaxEntryCount,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (invoice.Store, error) {
	if cfg.Backend != config.BackendS3 {
		logger.Warn("using in-memory invoice store; invoices are lost on restart")
		return invoice.NewMemoryStore(), nil
	}

	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}

	store, err := invoice.NewObjectStore(client, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	logger.Info("using object storage", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return store, nil
}
