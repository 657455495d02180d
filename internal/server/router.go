package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/herbtrace/herbtrace-backend/internal/handlers"
	"github.com/herbtrace/herbtrace-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName     string
	AllowedOrigins  []string
	BatchHandler    *handlers.BatchHandler
	ResourceHandler *handlers.ResourceHandler
	SyncHandler     *handlers.SyncHandler
	EventsHandler   *handlers.EventsHandler
	RoleMiddleware  *middleware.RoleMiddleware
	Registry        *prometheus.Registry
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Herbtrace-Role"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthz", handlers.HealthCheck)
	if cfg.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}
	// Consumer QR scans need no account.
	router.GET("/api/batches/qr/:qrCode/provenance", cfg.BatchHandler.GetProvenance)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.RoleMiddleware.RequireRole())

	api.GET("/batches", cfg.BatchHandler.ListBatches)
	api.GET("/batches/qr/:qrCode", cfg.BatchHandler.GetBatchByQRCode)
	api.GET("/access/:qrCode", cfg.BatchHandler.CheckAccess)

	api.POST("/resources", cfg.ResourceHandler.SubmitResource)
	api.POST("/batches/qr/:qrCode/review", cfg.ResourceHandler.ReviewBatch)
	api.POST("/batches/qr/:qrCode/complete", cfg.ResourceHandler.CompleteBatch)

	api.GET("/sync/status", cfg.SyncHandler.Status)
	api.POST("/sync/force", cfg.SyncHandler.ForceSync)
	api.POST("/sync/retry-failed", cfg.SyncHandler.RetryFailed)
	api.POST("/sync/clear-completed", cfg.SyncHandler.ClearCompleted)
	api.POST("/sync/online", cfg.SyncHandler.SetOnline)

	api.GET("/events", cfg.EventsHandler.Stream)

	return router
}
