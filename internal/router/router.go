package router

import (
	"log/slog"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/invoicer/internal/documents"
	"github.com/muandane/special-stack/invoicer/internal/handlers"
	"github.com/muandane/special-stack/invoicer/internal/invoice"
	"github.com/muandane/special-stack/invoicer/internal/middleware"
)

type Options struct {
	Store     invoice.Store
	Documents *documents.Service

	// CacheMetrics is exposed on /metrics next to the request metrics.
	CacheMetrics *metrics.Set

	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	engine *gin.Engine
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Router{
		engine: engine,
		logger: logger,
	}
}

func (r *Router) Setup(opts Options) *gin.Engine {
	var sets []*metrics.Set
	if opts.CacheMetrics != nil {
		sets = append(sets, opts.CacheMetrics)
	}
	metricsMiddleware := middleware.NewMetricsMiddleware(sets...)

	health := handlers.NewHealthHandler(r.logger)
	stats := handlers.NewStatsHandler(opts.Documents, r.logger)
	invoices := handlers.NewInvoiceHandler(opts.Store, opts.Documents, r.logger)
	docs := handlers.NewDocumentHandler(opts.Documents, r.logger)

	// Probes and scrapes bypass logging and rate limiting.
	r.engine.GET("/health", health.Check)
	r.engine.GET("/metrics", metricsMiddleware.Handler)

	api := r.engine.Group("/",
		middleware.WithLogging(r.logger),
		metricsMiddleware.WithMetrics(),
		middleware.WithRateLimit(opts.RateLimitRPS, opts.RateLimitBurst),
	)
	api.GET("/stats", stats.Stats)
	api.DELETE("/cache", stats.Clear)

	api.GET("/invoices", invoices.List)
	api.POST("/invoices/prefetch", docs.Prefetch)

	byID := api.Group("/invoices/:id", middleware.ValidateInvoiceID())
	byID.GET("", invoices.Get)
	byID.PUT("", invoices.Put)
	byID.DELETE("", invoices.Delete)
	byID.GET("/pdf", docs.PDF)
	byID.POST("/duplicate", invoices.Duplicate)

	return r.engine
}
