package di

import (
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/gateway"
	"github.com/bakate/aeroreserve/internal/handler"
	"github.com/bakate/aeroreserve/internal/inventory"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/internal/saga"
	"github.com/bakate/aeroreserve/internal/service"
	"github.com/bakate/aeroreserve/internal/worker"
	"github.com/bakate/aeroreserve/pkg/database"
	"github.com/bakate/aeroreserve/pkg/kafka"
	"github.com/bakate/aeroreserve/pkg/redis"
)

// Container holds all dependencies for the booking platform
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client
	Kafka *kafka.Producer

	// Gateways
	PaymentGateway      gateway.PaymentGateway
	NotificationGateway gateway.NotificationGateway

	// Repositories
	InventoryRepo repository.InventoryRepository
	BookingRepo   repository.BookingRepository
	TicketRepo    repository.TicketRepository
	OutboxRepo    repository.OutboxRepository
	TxManager     repository.TransactionManager

	// Seat engine and saga
	Engine *inventory.Engine
	Saga   *saga.BookingSaga

	// Services
	TokenService   service.ManageTokenService
	BookingService service.BookingService
	FlightService  service.FlightService

	// Workers
	ExpirySweeper   *worker.ExpirySweeper
	Dispatcher      *worker.Dispatcher
	OutboxPublisher *worker.OutboxPublisher

	// Handlers
	HealthHandler  *handler.HealthHandler
	BookingHandler *handler.BookingHandler
	FlightHandler  *handler.FlightHandler
	WebhookHandler *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB    *database.PostgresDB
	Redis *redis.Client
	Kafka *kafka.Producer

	InventoryRepo     repository.InventoryRepository
	BookingRepo       repository.BookingRepository
	TicketRepo        repository.TicketRepository
	OutboxRepo        repository.OutboxRepository
	TxManager         repository.TransactionManager
	AvailabilityCache repository.AvailabilityCache

	PaymentGateway      gateway.PaymentGateway
	NotificationGateway gateway.NotificationGateway

	EngineConfig    *inventory.EngineConfig
	SagaConfig      *saga.BookingSagaConfig
	TokenConfig     *service.ManageTokenConfig
	SweeperConfig   *worker.ExpirySweeperConfig
	PublisherConfig *worker.OutboxPublisherConfig

	StripeWebhookSecret     string
	HealthCacheTTL          time.Duration
	DisableManageTokenCheck bool
}

// NewContainer creates a new dependency injection container. Components
// whose dependencies are missing from the config stay nil, so worker
// binaries can build a container carrying only the pieces they run.
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:                  cfg.DB,
		Redis:               cfg.Redis,
		Kafka:               cfg.Kafka,
		PaymentGateway:      cfg.PaymentGateway,
		NotificationGateway: cfg.NotificationGateway,
		InventoryRepo:       cfg.InventoryRepo,
		BookingRepo:         cfg.BookingRepo,
		TicketRepo:          cfg.TicketRepo,
		OutboxRepo:          cfg.OutboxRepo,
		TxManager:           cfg.TxManager,
	}

	// Initialize handlers that only need infrastructure
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis, cfg.HealthCacheTTL)

	// Initialize the seat engine and the flight surface
	if c.InventoryRepo != nil {
		c.Engine = inventory.NewEngine(c.InventoryRepo, cfg.AvailabilityCache, cfg.EngineConfig)
		c.FlightService = service.NewFlightService(c.InventoryRepo, c.Engine)
		c.FlightHandler = handler.NewFlightHandler(c.FlightService)
	}

	// Initialize manage tokens if a signing secret is provided
	if cfg.TokenConfig != nil && cfg.TokenConfig.Secret != "" {
		c.TokenService = service.NewManageTokenService(cfg.TokenConfig)
	}

	// Initialize the saga and the booking surface
	if c.Engine != nil && c.BookingRepo != nil && c.PaymentGateway != nil && c.TokenService != nil {
		c.Saga = saga.NewBookingSaga(
			c.Engine,
			c.BookingRepo,
			c.TicketRepo,
			c.TxManager,
			c.PaymentGateway,
			c.NotificationGateway,
			cfg.SagaConfig,
		)
		c.BookingService = service.NewBookingService(c.Saga, c.BookingRepo, c.TicketRepo, c.TokenService)
		c.BookingHandler = handler.NewBookingHandler(c.BookingService, c.TokenService, &handler.BookingHandlerConfig{
			DisableManageTokenCheck: cfg.DisableManageTokenCheck,
		})

		// Initialize WebhookHandler if webhook secret is provided
		if cfg.StripeWebhookSecret != "" {
			c.WebhookHandler = handler.NewWebhookHandler(c.BookingService, cfg.StripeWebhookSecret)
		}
	}

	// Initialize workers
	if c.Engine != nil && c.BookingRepo != nil {
		c.ExpirySweeper = worker.NewExpirySweeper(c.Engine, c.BookingRepo, c.TxManager, cfg.SweeperConfig)
	}
	if c.OutboxRepo != nil {
		var relay worker.EventHandler
		if c.Kafka != nil {
			relay = worker.NewKafkaRelay(c.Kafka)
		}
		c.Dispatcher = worker.NewDispatcher(relay)
		if c.TicketRepo != nil && c.NotificationGateway != nil {
			c.Dispatcher.Register(
				domain.EventTypeTicketIssued,
				worker.NewTicketNotificationHandler(c.TicketRepo, c.NotificationGateway),
			)
		}
		c.OutboxPublisher = worker.NewOutboxPublisher(c.OutboxRepo, c.Dispatcher, cfg.PublisherConfig)
	}

	return c
}
