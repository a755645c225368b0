package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avicola-service/internal/cache"
	"avicola-service/internal/config"
	"avicola-service/internal/database"
	"avicola-service/internal/handlers"
	"avicola-service/internal/middleware"
	"avicola-service/internal/notify"
	"avicola-service/internal/repository"
	"avicola-service/internal/routes"
	"avicola-service/internal/scheduler"
	"avicola-service/internal/services"
	"avicola-service/internal/worker"
	"avicola-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Logging.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)
	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()

	// Almacenamiento
	var (
		store      repository.Store
		postgresDB *database.PostgresDB
		sqlDB      *sql.DB
	)
	switch cfg.Database.Driver {
	case config.StorageDriverMemory:
		baseLogger.Warn("Using in-memory storage, data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		postgresDB, err = database.NewPostgresDB(ctx, cfg.Database.URL, database.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger.Named(baseLogger, "database"))
		if err != nil {
			baseLogger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer postgresDB.Close()

		if cfg.Database.AutoMigrate {
			if err := postgresDB.Migrate(ctx); err != nil {
				baseLogger.Fatal("failed to migrate database", zap.Error(err))
			}
		}

		pgStore, err := repository.NewPostgresStore(postgresDB.DB)
		if err != nil {
			baseLogger.Fatal("failed to prepare statements", zap.Error(err))
		}
		defer pgStore.Close()

		store = pgStore
		sqlDB = postgresDB.DB
	}

	// Redis es opcional; sin él el caché queda solo en memoria
	redisDB, err := database.NewRedisDB(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, logger.Named(baseLogger, "redis"))
	if err != nil {
		baseLogger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	var redisClient *redis.Client
	if redisDB != nil {
		defer redisDB.Close()
		redisClient = redisDB.Client
	}

	loteCache := cache.NewLoteCache(redisClient, cfg.Cache.L1Size, cfg.Cache.TTL, logger.Named(baseLogger, "cache"))
	defer loteCache.Close()

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize, cfg.Worker.TaskTimeout, logger.Named(baseLogger, "worker"))
	pool.Start()

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notifier.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout)
		baseLogger.Info("alert webhook enabled")
	}

	// Servicios
	alertaService := services.NewAlertaService(store, cfg.Thresholds, notifier, pool, logger.Named(baseLogger, "svc.alertas"))
	inventarioService := services.NewInventarioService(store, loteCache, pool, alertaService, logger.Named(baseLogger, "svc.inventario"))
	registroService := services.NewRegistroService(store, loteCache, pool, alertaService, logger.Named(baseLogger, "svc.registros"))
	granjaService := services.NewGranjaService(store, logger.Named(baseLogger, "svc.granja"))
	monitoringService := services.NewMonitoringService(
		logger.Named(baseLogger, "svc.monitoring"),
		cfg,
		redisClient,
		sqlDB,
		loteCache,
		pool,
		alertaService,
	)

	sched := scheduler.NewScheduler(cfg.Scheduler.StockSweepCron, alertaService, logger.Named(baseLogger, "scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}

	// HTTP
	httpLogger := logger.Named(baseLogger, "http")
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService, logger.Named(baseLogger, "handlers.monitoring"))

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(httpLogger))
	router.Use(middleware.RecoveryMiddleware(httpLogger))
	router.Use(monitoringHandler.RecordRequestMiddleware())

	routes.SetupRoutes(router, routes.Handlers{
		Inventario: handlers.NewInventarioHandler(inventarioService, logger.Named(baseLogger, "handlers.inventario")),
		Granja:     handlers.NewGranjaHandler(granjaService, inventarioService, logger.Named(baseLogger, "handlers.granja")),
		Registro:   handlers.NewRegistroHandler(registroService, logger.Named(baseLogger, "handlers.registros")),
		Alerta:     handlers.NewAlertaHandler(alertaService, logger.Named(baseLogger, "handlers.alertas")),
		Monitoring: monitoringHandler,
		Health:     middleware.NewHealthChecker(postgresDB, redisDB, logger.Named(baseLogger, "health")),
	})

	middleware.ServerInfo(cfg, baseLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	// las tareas pendientes se drenan antes de cerrar la base
	if err := pool.Stop(shutdownCtx); err != nil {
		baseLogger.Warn("worker pool stopped with pending tasks", zap.Error(err))
	}
}
