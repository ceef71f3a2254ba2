package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Import pprof for profiling
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bakate/aeroreserve/internal/di"
	"github.com/bakate/aeroreserve/internal/gateway"
	"github.com/bakate/aeroreserve/internal/inventory"
	"github.com/bakate/aeroreserve/internal/metrics"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/internal/saga"
	"github.com/bakate/aeroreserve/internal/service"
	"github.com/bakate/aeroreserve/pkg/config"
	"github.com/bakate/aeroreserve/pkg/database"
	"github.com/bakate/aeroreserve/pkg/logger"
	"github.com/bakate/aeroreserve/pkg/middleware"
	pkgredis "github.com/bakate/aeroreserve/pkg/redis"
	"github.com/bakate/aeroreserve/pkg/telemetry"
)

func main() {
	// Optimize Go runtime for high concurrency
	runtime.GOMAXPROCS(runtime.NumCPU())

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
		ServiceName: "aeroreserve-api",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting AeroReserve API...")

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	if cfg.OTel.Enabled {
		_, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName,
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
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MinIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	// Bootstrap schema for development databases; production runs migrations
	if err := repository.Bootstrap(ctx, db.Pool()); err != nil {
		appLog.Warn(fmt.Sprintf("Schema bootstrap failed (run migrations manually): %v", err))
	}

	// Initialize Redis connection
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	}
	redisClient, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", redisCfg.PoolSize, redisCfg.MinIdleConns))

	// Initialize repositories
	txManager := repository.NewPgxTransactionManager(db.Pool())
	outboxRepo := repository.NewPostgresOutboxRepository(db.Pool())
	inventoryRepo := repository.NewPostgresInventoryRepository(db.Pool(), txManager, outboxRepo)
	bookingRepo := repository.NewPostgresBookingRepository(db.Pool(), txManager, outboxRepo)
	ticketRepo := repository.NewPostgresTicketRepository(db.Pool(), txManager, outboxRepo)
	availabilityCache := repository.NewRedisAvailabilityCache(redisClient, cfg.Redis.AvailabilityTTL)

	// Initialize gateways
	paymentGateway, err := gateway.NewPaymentGatewayFromConfig(cfg.Payment)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Payment gateway init failed: %v", err))
	}
	notificationGateway, err := gateway.NewNotificationGatewayFromConfig(cfg.Notification)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Notification gateway init failed: %v", err))
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:                  db,
		Redis:               redisClient,
		InventoryRepo:       inventoryRepo,
		BookingRepo:         bookingRepo,
		TicketRepo:          ticketRepo,
		OutboxRepo:          outboxRepo,
		TxManager:           txManager,
		AvailabilityCache:   availabilityCache,
		PaymentGateway:      paymentGateway,
		NotificationGateway: notificationGateway,
		EngineConfig: &inventory.EngineConfig{
			QueueCapacity: cfg.Inventory.QueueCapacity,
			MaxBatchSize:  cfg.Inventory.MaxBatchSize,
			OCCMaxRetries: cfg.Inventory.OCCMaxRetries,
			HoldDuration:  cfg.Inventory.HoldDuration,
		},
		SagaConfig: &saga.BookingSagaConfig{
			CarrierCode:        cfg.Booking.CarrierCode,
			PnrMaxAttempts:     cfg.Booking.PnrMaxAttempts,
			ConfirmMaxRetries:  cfg.Booking.OCCMaxRetries,
			HoldDuration:       cfg.Inventory.HoldDuration,
			SuccessURL:         cfg.Payment.SuccessURL,
			CancelURL:          cfg.Payment.CancelURL,
			PaymentTimeout:     cfg.Payment.RequestTimeout,
			PaymentMaxAttempts: cfg.Payment.MaxRetries,
			PollInterval:       cfg.Payment.PollInterval,
			PollTimeout:        cfg.Payment.PollTimeout,
			NotifyTimeout:      cfg.Notification.RequestTimeout,
			NotifyMaxAttempts:  cfg.Notification.MaxRetries,
		},
		TokenConfig: &service.ManageTokenConfig{
			Secret: cfg.JWT.Secret,
			TTL:    cfg.JWT.TokenTTL,
			Issuer: cfg.JWT.Issuer,
		},
		StripeWebhookSecret: cfg.Payment.WebhookSecret,
		HealthCacheTTL:      cfg.Health.CacheTTL,
	})

	// Start the seat engine before taking traffic
	if err := container.Engine.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Seat engine start failed: %v", err))
	}
	appLog.Info("Seat engine started")

	// Setup Gin
	gin.SetMode(gin.ReleaseMode)
	gin.DisableConsoleColor()

	router := gin.New()

	// Use minimal middleware for performance
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.GinMiddleware("aeroreserve-api"))
	}

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/health/ready", container.HealthHandler.Ready)

	// Metrics endpoint for monitoring
	router.GET("/metrics", func(c *gin.Context) {
		stats := db.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db_pool": gin.H{
				"total_conns":        stats.TotalConns(),
				"acquired_conns":     stats.AcquiredConns(),
				"idle_conns":         stats.IdleConns(),
				"max_conns":          stats.MaxConns(),
				"constructing_conns": stats.ConstructingConns(),
			},
		})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Status endpoint
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": "aeroreserve-api",
			})
		})

		// Flight routes
		flights := v1.Group("/flights")
		{
			flights.POST("", container.FlightHandler.CreateFlight)
			flights.GET("", container.FlightHandler.FindFlights)
			flights.GET("/:id/availability", container.FlightHandler.GetAvailability)
		}

		// Booking routes
		if container.BookingHandler != nil {
			bookings := v1.Group("/bookings")

			// Configure idempotency middleware for write operations
			var idempotencyConfig *middleware.IdempotencyConfig
			if cfg.Redis.IdempotencyEnable {
				idempotencyConfig = middleware.DefaultIdempotencyConfig(redisClient)
				idempotencyConfig.TTL = cfg.Redis.IdempotencyTTL
				idempotencyConfig.SkipPaths = []string{"/health", "/health/ready", "/metrics"}
			}

			{
				// Write operations with idempotency (if enabled)
				if idempotencyConfig != nil {
					bookings.POST("", middleware.IdempotencyMiddleware(idempotencyConfig), container.BookingHandler.CreateBooking)
					bookings.POST("/:id/confirm", middleware.IdempotencyMiddleware(idempotencyConfig), container.BookingHandler.ConfirmBooking)
					bookings.POST("/:id/cancel", middleware.IdempotencyMiddleware(idempotencyConfig), container.BookingHandler.CancelBooking)
				} else {
					bookings.POST("", container.BookingHandler.CreateBooking)
					bookings.POST("/:id/confirm", container.BookingHandler.ConfirmBooking)
					bookings.POST("/:id/cancel", container.BookingHandler.CancelBooking)
				}

				// Read operations without idempotency
				bookings.GET("", container.BookingHandler.ListBookings)
				bookings.GET("/:id", container.BookingHandler.GetBooking)
			}
		}

		// Stripe webhook, registered only when a webhook secret is configured
		if container.WebhookHandler != nil {
			v1.POST("/payments/webhook", container.WebhookHandler.HandleStripeWebhook)
		}
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start pprof server on separate port for profiling
	go func() {
		pprofAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1000)
		appLog.Info(fmt.Sprintf("pprof server listening on %s", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			appLog.Error(fmt.Sprintf("pprof server error: %v", err))
		}
	}()

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("AeroReserve API listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	// Drain queued seat operations after the listener closed
	container.Engine.Stop()

	appLog.Info("Server exited gracefully")
}
