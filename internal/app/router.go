package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/herbtrace/herbtrace-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, middlewareset Middleware, registry *prometheus.Registry) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:     "herbtrace-backend",
		AllowedOrigins:  cfg.AllowedOrigins,
		BatchHandler:    handlerset.Batch,
		ResourceHandler: handlerset.Resource,
		SyncHandler:     handlerset.Sync,
		EventsHandler:   handlerset.Events,
		RoleMiddleware:  middlewareset.Role,
		Registry:        registry,
	})
}
