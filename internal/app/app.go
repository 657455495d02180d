package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/herbtrace/herbtrace-backend/internal/data/db"
	"github.com/herbtrace/herbtrace-backend/internal/notify"
	"github.com/herbtrace/herbtrace-backend/internal/observability"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

const observabilityShutdownTimeout = 5 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Hub      *notify.Hub

	bus          *notify.RedisBus
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg := LoadConfig(log)

	store, err := db.NewStore(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("store automigrate: %w", err)
	}
	theDB := store.DB()

	hub := notify.NewHub(log)

	var bus *notify.RedisBus
	if cfg.RedisAddr != "" {
		bus, err = notify.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(log, cfg, reposet, hub, bus, registry)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, hub)
	middlewareset := wireMiddleware(log, cfg)
	router := wireRouter(cfg, handlerset, middlewareset, registry)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Hub:      hub,
		bus:      bus,
	}, nil
}

// Start launches the background pieces: tracing, the idle-interval queue
// drain, and the cross-process update forwarder.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "herbtrace-backend",
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
	})

	if a.Cfg.SyncAutoDrain {
		a.Services.SyncEngine.StartTicker(ctx, a.Cfg.SyncInterval)
	} else {
		a.Log.Info("background queue drain disabled; manual sync endpoints only")
	}

	if a.bus != nil {
		if err := a.bus.StartForwarder(ctx, a.Hub.Publish); err != nil {
			a.Log.Warn("redis forwarder not started", "error", err)
		}
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), observabilityShutdownTimeout)
		_ = a.otelShutdown(ctx)
		cancel()
		a.otelShutdown = nil
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
