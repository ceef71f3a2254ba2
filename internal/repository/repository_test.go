package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/pkg/database"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
}

func setupTestDB(t *testing.T) *database.PostgresDB {
	ctx := context.Background()

	cfg := &database.PostgresConfig{
		Host:            getEnv("POSTGRES_HOST", "localhost"),
		Port:            5432,
		User:            getEnv("POSTGRES_USER", "postgres"),
		Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
		Database:        getEnv("POSTGRES_DB", "aeroreserve_test"),
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 1 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
	}

	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := Bootstrap(ctx, db.Pool()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db
}

func cleanupTestData(t *testing.T, db *database.PostgresDB) {
	ctx := context.Background()

	statements := []string{
		"DELETE FROM tickets WHERE booking_id LIKE 'test-%'",
		"DELETE FROM bookings WHERE id LIKE 'test-%'",
		"DELETE FROM flight_inventory WHERE flight_id LIKE 'test-%'",
		"DELETE FROM event_outbox WHERE aggregate_id LIKE 'test-%'",
	}
	for _, stmt := range statements {
		if _, err := db.Pool().Exec(ctx, stmt); err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func testMoney(t *testing.T, amount int64) domain.Money {
	t.Helper()
	m, err := domain.NewMoney(amount, domain.CurrencyEUR)
	if err != nil {
		t.Fatalf("Failed to build money: %v", err)
	}
	return m
}

func newTestInventory(t *testing.T, flightID string, economySeats int) *domain.FlightInventory {
	t.Helper()

	economy, err := domain.NewSeatBucket(economySeats, testMoney(t, 12000))
	if err != nil {
		t.Fatalf("Failed to build economy bucket: %v", err)
	}
	business, err := domain.NewSeatBucket(8, testMoney(t, 48000))
	if err != nil {
		t.Fatalf("Failed to build business bucket: %v", err)
	}

	inventory, err := domain.NewFlightInventory(flightID, map[domain.CabinClass]domain.SeatBucket{
		domain.CabinEconomy:  economy,
		domain.CabinBusiness: business,
	})
	if err != nil {
		t.Fatalf("Failed to build inventory: %v", err)
	}
	return inventory
}

func newTestBooking(t *testing.T, id, flightID string) *domain.Booking {
	t.Helper()

	pnr, err := domain.GeneratePnrCode()
	if err != nil {
		t.Fatalf("Failed to generate PNR: %v", err)
	}

	passengers := []domain.Passenger{{
		ID:          uuid.New().String(),
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC),
		Gender:      domain.GenderFemale,
		Type:        domain.PassengerTypeAdult,
	}}
	segments := []domain.Segment{{
		ID:       uuid.New().String(),
		FlightID: flightID,
		Cabin:    domain.CabinEconomy,
		Price:    testMoney(t, 12000),
	}}

	booking, err := domain.NewBooking(id, pnr, "ada@example.com", passengers, segments, 30*time.Minute)
	if err != nil {
		t.Fatalf("Failed to build booking: %v", err)
	}
	return booking
}
