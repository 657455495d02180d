package app

import (
	"github.com/herbtrace/herbtrace-backend/internal/middleware"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

type Middleware struct {
	Role *middleware.RoleMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	if cfg.JWTSecretKey == "" {
		log.Warn("no JWT secret configured; falling back to role header (development only)")
	}
	return Middleware{
		Role: middleware.NewRoleMiddleware(log, cfg.JWTSecretKey),
	}
}
