// Package api exposes the search service over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/internal/answer"
	"github.com/gcbaptista/go-search-service/internal/metrics"
	"github.com/gcbaptista/go-search-service/services"
)

const (
	serviceName    = "go-search-service"
	serviceVersion = "0.2.0"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck() error
}

// API holds dependencies for API handlers, primarily the search engine manager.
type API struct {
	engine  services.IndexManager
	answers *answer.Orchestrator
	health  HealthChecker
}

// NewAPI creates a new API handler structure. answers may be nil when no
// generative-text provider is configured; health may be nil.
func NewAPI(engine services.IndexManager, answers *answer.Orchestrator, health HealthChecker) *API {
	if answers == nil {
		answers = answer.NewOrchestrator(nil, nil)
	}
	return &API{engine: engine, answers: answers, health: health}
}

// RouterConfig holds the middleware settings of the router.
type RouterConfig struct {
	APITokens    []string
	CORSOrigins  []string
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// SetupRoutes installs the middleware chain and every route of the API.
func SetupRoutes(router *gin.Engine, api *API, cfg RouterConfig) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	RegisterValidators()

	router.Use(
		RequestIDMiddleware(),
		LoggingMiddleware(cfg.Logger),
		gin.Recovery(),
		metrics.Middleware(),
		CORSMiddleware(cfg.CORSOrigins),
	)
	if cfg.MaxBodyBytes > 0 {
		router.Use(RequestSizeLimitMiddleware(cfg.MaxBodyBytes))
	}

	router.GET("/health", api.HealthCheckHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	public := router.Group("/indexes")
	{
		public.GET("", api.ListIndexesHandler)
		public.GET("/:indexName", api.GetIndexHandler)
		public.GET("/:indexName/stats", api.GetIndexStatsHandler)
		public.POST("/:indexName/_search", api.SearchHandler)
		public.POST("/:indexName/_multi_search", api.MultiSearchHandler)
		public.POST("/:indexName/_suggest", api.SuggestHandler)
		public.POST("/:indexName/_answer", api.AnswerHandler)
		public.GET("/:indexName/documents/:documentId", api.GetDocumentHandler)
		public.GET("/:indexName/synonyms", api.GetSynonymsHandler)
		public.GET("/:indexName/pinned", api.GetPinnedRulesHandler)
	}

	// Routes that modify state require a bearer token when tokens are configured
	protected := router.Group("/indexes", AuthMiddleware(cfg.APITokens))
	{
		protected.POST("", api.CreateIndexHandler)
		protected.DELETE("/:indexName", api.DeleteIndexHandler)

		protected.PUT("/:indexName/documents", api.AddDocumentsHandler)
		protected.POST("/:indexName/documents/_bulk", api.BulkHandler)
		protected.DELETE("/:indexName/documents/:documentId", api.DeleteDocumentHandler)

		protected.PUT("/:indexName/synonyms", api.SetSynonymsHandler)
		protected.POST("/:indexName/synonyms", api.AddSynonymsHandler)
		protected.DELETE("/:indexName/synonyms", api.ClearSynonymsHandler)

		protected.PUT("/:indexName/pinned", api.SetPinnedRulesHandler)
		protected.POST("/:indexName/pinned", api.AddPinnedRulesHandler)
		protected.DELETE("/:indexName/pinned", api.ClearPinnedRulesHandler)
	}
}

// HealthCheckHandler reports the status of the service and its dependencies.
func (api *API) HealthCheckHandler(c *gin.Context) {
	status := http.StatusOK
	store := "healthy"
	if api.health != nil {
		if err := api.health.HealthCheck(); err != nil {
			status = http.StatusServiceUnavailable
			store = "unhealthy"
		}
	}
	llm := "disabled"
	if api.answers.Enabled() {
		llm = "configured"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": serviceName,
		"version": serviceVersion,
		"checks": gin.H{
			"metadata_store": store,
			"llm":            llm,
		},
	})
}

// indexAccessor resolves the :indexName parameter. On failure it sends the error
// response and returns nil.
func (api *API) indexAccessor(c *gin.Context) services.IndexAccessor {
	indexName := c.Param("indexName")
	if result := ValidateIndexName(indexName); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return nil
	}
	accessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, err)
		return nil
	}
	return accessor
}
