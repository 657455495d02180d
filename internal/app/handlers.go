package app

import (
	"github.com/herbtrace/herbtrace-backend/internal/handlers"
	"github.com/herbtrace/herbtrace-backend/internal/notify"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

type Handlers struct {
	Batch    *handlers.BatchHandler
	Resource *handlers.ResourceHandler
	Sync     *handlers.SyncHandler
	Events   *handlers.EventsHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, hub *notify.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Batch:    handlers.NewBatchHandler(log, serviceset.Tracking, serviceset.Workflow, serviceset.Provenance),
		Resource: handlers.NewResourceHandler(log, serviceset.Tracking),
		Sync:     handlers.NewSyncHandler(log, serviceset.SyncEngine),
		Events:   handlers.NewEventsHandler(log, hub),
	}
}
