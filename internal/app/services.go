package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/herbtrace/herbtrace-backend/internal/clients/authstore"
	"github.com/herbtrace/herbtrace-backend/internal/metrics"
	"github.com/herbtrace/herbtrace-backend/internal/notify"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/provenance"
	"github.com/herbtrace/herbtrace-backend/internal/services"
	"github.com/herbtrace/herbtrace-backend/internal/syncq"
	"github.com/herbtrace/herbtrace-backend/internal/workflow"
)

type Services struct {
	Workflow   *workflow.Service
	Provenance *provenance.Service
	Tracking   *services.TrackingService
	SyncEngine *syncq.Engine
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, hub *notify.Hub, bus *notify.RedisBus, registry *prometheus.Registry) (Services, error) {
	log.Info("Wiring services...")

	if cfg.AuthStoreURL == "" {
		return Services{}, fmt.Errorf("AUTH_STORE_URL is required")
	}
	storeClient, err := authstore.New(log, authstore.Config{
		BaseURL:      cfg.AuthStoreURL,
		PathVariants: cfg.AuthStorePaths,
		DeviceInfo:   cfg.DeviceInfo,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init auth store client: %w", err)
	}

	syncMetrics := metrics.NewSyncMetrics(registry)
	engine := syncq.NewEngine(reposet.SyncItems, authstore.NewTransport(storeClient), log, syncMetrics, syncq.Config{
		MaxAttempts: cfg.SyncMaxAttempts,
		BaseDelay:   cfg.SyncBaseDelay,
	})

	workflowSvc := workflow.NewService(reposet.Batches, log)
	provenanceSvc := provenance.NewService(reposet.Batches, log)
	trackingSvc := services.NewTrackingService(reposet.Batches, workflowSvc, engine, hub, bus, log)

	return Services{
		Workflow:   workflowSvc,
		Provenance: provenanceSvc,
		Tracking:   trackingSvc,
		SyncEngine: engine,
	}, nil
}
