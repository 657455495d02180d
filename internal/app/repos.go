package app

import (
	"gorm.io/gorm"

	"github.com/herbtrace/herbtrace-backend/internal/data/repos/batches"
	"github.com/herbtrace/herbtrace-backend/internal/data/repos/syncitems"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

type Repos struct {
	Batches   batches.BatchRepo
	SyncItems syncitems.SyncItemRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Batches:   batches.NewBatchRepo(db, log),
		SyncItems: syncitems.NewSyncItemRepo(db, log),
	}
}
