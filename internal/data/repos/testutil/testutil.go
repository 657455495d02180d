package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/herbtrace/herbtrace-backend/internal/data/db"
	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

var dbSeq atomic.Int64

// DB opens a fresh in-memory SQLite store per test and migrates the schema.
// Each store gets a unique name so cache=shared keeps the database alive
// across the pooled connections of one test without leaking into the next.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := fmt.Sprintf("file:herbtrace_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	handle, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(handle); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	tb.Cleanup(func() {
		// Each in-memory store dies with its connection.
		if sqlDB, err := handle.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return handle
}

func Tx(tb testing.TB, handle *gorm.DB) dbctx.Context {
	tb.Helper()
	tx := handle.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func SeedBatch(tb testing.TB, dbc dbctx.Context, qrCode string, status domain.BatchStatus) *domain.Batch {
	tb.Helper()
	now := time.Now().UTC()
	b, err := domain.NewBatch(qrCode, "Withania somnifera", domain.RoleCollector, now)
	if err != nil {
		tb.Fatalf("seed batch: %v", err)
	}
	b.Status = status
	if status != domain.StatusPending {
		if err := b.AppendStatus(domain.StatusChange{
			Status:    status,
			Timestamp: now,
			ActorRole: domain.RoleCollector,
			Notes:     "seeded",
		}); err != nil {
			tb.Fatalf("seed batch history: %v", err)
		}
	}
	conn := dbc.Tx
	if err := conn.WithContext(dbc.Ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed batch insert: %v", err)
	}
	return b
}
