package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/gateway"
	"github.com/bakate/aeroreserve/internal/metrics"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/internal/worker"
	"github.com/bakate/aeroreserve/pkg/config"
	"github.com/bakate/aeroreserve/pkg/database"
	"github.com/bakate/aeroreserve/pkg/kafka"
	"github.com/bakate/aeroreserve/pkg/logger"
	"github.com/bakate/aeroreserve/pkg/retry"
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
		ServiceName: "outbox-publisher",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Outbox Publisher Worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry tracing
	if cfg.OTel.Enabled {
		_, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    "outbox-publisher",
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

	// Initialize Kafka producer; without it entries still reach the
	// registered handlers
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:       cfg.Kafka.Brokers,
			ClientID:      cfg.Kafka.ClientID,
			MaxRetries:    3,
			RetryInterval: 2 * time.Second,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, publishing to handlers only: %v", err))
			producer = nil
		} else {
			defer producer.Close()
			appLog.Info("Kafka producer connected")
		}
	}

	// Initialize repositories
	txManager := repository.NewPgxTransactionManager(db.Pool())
	outboxRepo := repository.NewPostgresOutboxRepository(db.Pool())
	ticketRepo := repository.NewPostgresTicketRepository(db.Pool(), txManager, outboxRepo)

	// Initialize notification gateway for ticket resends
	notificationGateway, err := gateway.NewNotificationGatewayFromConfig(cfg.Notification)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Notification gateway init failed: %v", err))
	}

	// Build the dispatcher. With a broker present, exhausted entries are
	// also copied to a dead letter topic.
	var relay worker.EventHandler
	var dlq retry.DLQPublisher
	if producer != nil {
		relay = worker.NewKafkaRelay(producer)
		dlq = retry.NewKafkaDLQPublisher(producer, &retry.DLQConfig{Source: "outbox-publisher"})
	}
	dispatcher := worker.NewDispatcher(relay)
	dispatcher.Register(
		domain.EventTypeTicketIssued,
		worker.NewTicketNotificationHandler(ticketRepo, notificationGateway),
	)

	// Create and start the publisher
	publisher := worker.NewOutboxPublisher(outboxRepo, dispatcher, &worker.OutboxPublisherConfig{
		PollInterval:  cfg.Outbox.PollInterval,
		BatchSize:     cfg.Outbox.BatchSize,
		MaxRetries:    cfg.Outbox.MaxRetries,
		RetentionDays: cfg.Outbox.RetentionDays,
		DLQ:           dlq,
	})
	if err := publisher.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start publisher: %v", err))
	}

	appLog.Info("Outbox Publisher started successfully")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down worker...")
	cancel()
	publisher.Stop()

	appLog.Info("Worker exited gracefully")
}
