package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/utils"
)

// Store owns the GORM handle backing both the batch collection and the sync
// queue. The default driver is SQLite so a disconnected client keeps a
// durable local store; postgres serves shared deployments.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStore(logg *logger.Logger) (*Store, error) {
	storeLog := logg.With("service", "Store")

	driver := utils.GetEnv("STORE_DRIVER", "sqlite", logg)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "postgres":
		host := utils.GetEnv("POSTGRES_HOST", "localhost", logg)
		port := utils.GetEnv("POSTGRES_PORT", "5432", logg)
		user := utils.GetEnv("POSTGRES_USER", "postgres", logg)
		password := utils.GetEnv("POSTGRES_PASSWORD", "", logg)
		name := utils.GetEnv("POSTGRES_NAME", "herbtrace", logg)
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			user, password, host, port, name,
		)
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		path := utils.GetEnv("SQLITE_PATH", "herbtrace.db", logg)
		db, err = gorm.Open(sqlite.Open(path), cfg)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}

	storeLog.Info("store opened", "driver", driver)
	return &Store{db: db, log: storeLog}, nil
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) AutoMigrateAll() error {
	return AutoMigrate(s.db)
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Batch{},
		&domain.BatchResource{},
		&domain.SyncItem{},
	)
}
