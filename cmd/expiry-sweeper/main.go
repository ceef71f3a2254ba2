package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakate/aeroreserve/internal/inventory"
	"github.com/bakate/aeroreserve/internal/metrics"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/internal/worker"
	"github.com/bakate/aeroreserve/pkg/config"
	"github.com/bakate/aeroreserve/pkg/database"
	"github.com/bakate/aeroreserve/pkg/logger"
	pkgredis "github.com/bakate/aeroreserve/pkg/redis"
	"github.com/bakate/aeroreserve/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	logCfg := &logger.Config{
		Level:       logLevel,
		ServiceName: "expiry-sweeper",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Expiry Sweeper Worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry tracing
	if cfg.OTel.Enabled {
		_, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    "expiry-sweeper",
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
			SampleRatio:    cfg.OTel.SampleRatio,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Failed to initialize tracer (continuing without tracing): %v", err))
		} else {
			defer telemetry.Shutdown(ctx)
			appLog.Info("OpenTelemetry tracing initialized")
		}
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to initialize metrics: %v", err))
	}

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		EnableTracing: cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// Initialize Redis so released seats refresh the availability cache
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	redisClient, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Initialize repositories
	txManager := repository.NewPgxTransactionManager(db.Pool())
	outboxRepo := repository.NewPostgresOutboxRepository(db.Pool())
	inventoryRepo := repository.NewPostgresInventoryRepository(db.Pool(), txManager, outboxRepo)
	bookingRepo := repository.NewPostgresBookingRepository(db.Pool(), txManager, outboxRepo)
	availabilityCache := repository.NewRedisAvailabilityCache(redisClient, cfg.Redis.AvailabilityTTL)

	// Start the seat engine that returns expired holds to inventory
	engine := inventory.NewEngine(inventoryRepo, availabilityCache, &inventory.EngineConfig{
		QueueCapacity: cfg.Inventory.QueueCapacity,
		MaxBatchSize:  cfg.Inventory.MaxBatchSize,
		OCCMaxRetries: cfg.Inventory.OCCMaxRetries,
		HoldDuration:  cfg.Inventory.HoldDuration,
	})
	if err := engine.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Seat engine start failed: %v", err))
	}

	// Create and start the sweeper
	sweeper := worker.NewExpirySweeper(engine, bookingRepo, txManager, &worker.ExpirySweeperConfig{
		Interval: cfg.Sweeper.Interval,
		PageSize: cfg.Sweeper.PageSize,
	})
	if err := sweeper.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start sweeper: %v", err))
	}

	appLog.Info("Expiry Sweeper started successfully")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down worker...")
	cancel()
	sweeper.Stop()
	engine.Stop()

	appLog.Info("Worker exited gracefully")
}
