package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gcbaptista/go-notes-index/internal/logging"
	"github.com/gcbaptista/go-notes-index/internal/metrics"
	"github.com/gcbaptista/go-notes-index/internal/watcher"
	"github.com/gcbaptista/go-notes-index/services"
)

// DefaultMaxBodySize bounds request bodies; a note larger than this cannot be indexed over HTTP.
const DefaultMaxBodySize = 8 << 20

// Syncer reconciles the index with the notes directory.
type Syncer interface {
	Sync(ctx context.Context) (watcher.SyncReport, error)
}

// API holds dependencies for API handlers.
type API struct {
	index    services.NotesIndex
	syncer   Syncer // nil when no notes root is configured
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	started  time.Time
}

// Option configures an API.
type Option func(*API)

// WithSyncer enables POST /index/_sync.
func WithSyncer(s Syncer) Option {
	return func(a *API) { a.syncer = s }
}

// WithGatherer serves the metrics of g at GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *API) { a.gatherer = g }
}

// WithLogger overrides the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// NewAPI creates a new API handler structure.
func NewAPI(index services.NotesIndex, opts ...Option) *API {
	a := &API{
		index:   index,
		logger:  logging.WithComponent("api"),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetupRoutes defines all the API routes of the notes index.
func SetupRoutes(router *gin.Engine, index services.NotesIndex, opts ...Option) *API {
	apiHandler := NewAPI(index, opts...)

	router.Use(RequestIDMiddleware(), LoggingMiddleware(apiHandler.logger), RequestSizeLimitMiddleware(DefaultMaxBodySize))

	// Health check route
	router.GET("/health", apiHandler.HealthCheckHandler)
	if apiHandler.gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(apiHandler.gatherer)))
	}

	// Tokenizer route, independent of any index
	router.POST("/analyze", apiHandler.AnalyzeHandler)

	// Index lifecycle routes
	indexRoutes := router.Group("/index")
	{
		indexRoutes.POST("", apiHandler.CreateIndexHandler)            // Create (or replace) the index file
		indexRoutes.POST("/_open", apiHandler.OpenIndexHandler)        // Open an existing index file
		indexRoutes.POST("/_close", apiHandler.CloseIndexHandler)      // Flush and close
		indexRoutes.POST("/_sync", apiHandler.SyncHandler)             // Reconcile with the notes directory
		indexRoutes.GET("/stats", apiHandler.GetIndexStatsHandler)     // Index statistics
		indexRoutes.DELETE("/documents", apiHandler.ClearIndexHandler) // Remove every document
		indexRoutes.GET("/documents", apiHandler.ListDocumentsHandler) // List document IDs
	}

	// Document routes; IDs are paths and may contain slashes
	docRoutes := router.Group("/documents")
	{
		docRoutes.PUT("/*docId", apiHandler.PutDocumentHandler)
		docRoutes.GET("/*docId", apiHandler.GetDocumentHandler)
		docRoutes.DELETE("/*docId", apiHandler.DeleteDocumentHandler)
	}

	router.POST("/search", apiHandler.SearchHandler)
	return apiHandler
}

// HealthCheckHandler provides a simple health check endpoint
func (api *API) HealthCheckHandler(c *gin.Context) {
	status := gin.H{
		"status":     "healthy",
		"service":    "go-notes-index",
		"timestamp":  time.Now().Unix(),
		"uptime_sec": int64(time.Since(api.started).Seconds()),
		"index_open": false,
	}
	if stats, err := api.index.Stats(); err == nil {
		status["index_open"] = true
		status["generation"] = stats.Generation
		status["documents"] = stats.DocumentCount
	}
	c.JSON(http.StatusOK, status)
}
