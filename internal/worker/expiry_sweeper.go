package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/inventory"
	"github.com/bakate/aeroreserve/internal/metrics"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/pkg/logger"
)

// SeatReleaser returns held seats to flight inventory. Satisfied by
// inventory.Engine, which retries version conflicts internally.
type SeatReleaser interface {
	ReleaseSeats(ctx context.Context, flightID string, cabin domain.CabinClass, seats int) (*inventory.ReleaseResult, error)
}

// ExpirySweeperConfig contains configuration for the expiry sweeper
type ExpirySweeperConfig struct {
	// Interval is the time between sweep passes
	Interval time.Duration
	// PageSize bounds how many expired bookings one pass loads
	PageSize int
}

// DefaultExpirySweeperConfig returns default configuration
func DefaultExpirySweeperConfig() *ExpirySweeperConfig {
	return &ExpirySweeperConfig{
		Interval: 60 * time.Second,
		PageSize: 100,
	}
}

// saveRetries bounds how often an expire save is repeated after a
// version conflict before the booking is left for the next pass.
const saveRetries = 3

// ExpirySweeper drives held bookings whose hold lapsed into the Expired
// state: seats go back to inventory first, then the booking is persisted
// terminal. A booking that fails either step stays Held and is picked up
// again on the next pass.
type ExpirySweeper struct {
	inventory SeatReleaser
	bookings  repository.BookingRepository
	tx        repository.TransactionManager
	config    *ExpirySweeperConfig
	log       *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool

	// Stats
	totalExpired     int64
	lastSweepTime    time.Time
	lastExpiredCount int
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(
	inventory SeatReleaser,
	bookings repository.BookingRepository,
	tx repository.TransactionManager,
	config *ExpirySweeperConfig,
) *ExpirySweeper {
	if config == nil {
		config = DefaultExpirySweeperConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}

	return &ExpirySweeper{
		inventory: inventory,
		bookings:  bookings,
		tx:        tx,
		config:    config,
		log:       logger.Get(),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the expiry sweeper
func (w *ExpirySweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry sweeper already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry sweeper")

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the expiry sweeper
func (w *ExpirySweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry sweeper")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry sweeper stopped")
}

// run sweeps on a fixed cadence until stopped
func (w *ExpirySweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep processes one page of expired bookings. A failure on one booking
// never aborts the rest of the page.
func (w *ExpirySweeper) sweep(ctx context.Context) {
	started := time.Now()

	expired, err := w.bookings.FindExpired(ctx, started, w.config.PageSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to load expired bookings: %v", err))
		return
	}

	w.mu.Lock()
	w.lastSweepTime = started
	w.lastExpiredCount = len(expired)
	w.mu.Unlock()

	if len(expired) == 0 {
		metrics.RecordSweep(ctx, time.Since(started).Seconds())
		return
	}

	w.log.Info(fmt.Sprintf("Found %d expired bookings to process", len(expired)))

	var done int64
	for _, booking := range expired {
		if err := w.expireBooking(ctx, booking); err != nil {
			w.log.Error(fmt.Sprintf("Failed to expire booking %s: %v", booking.ID, err))
			continue
		}
		done++
	}

	w.mu.Lock()
	w.totalExpired += done
	w.mu.Unlock()

	metrics.RecordBookingsExpired(ctx, done)
	metrics.RecordSweep(ctx, time.Since(started).Seconds())
}

// expireBooking returns a single booking's seats and persists the Expired
// state. Seats go back first so a crash between the two steps leaves the
// booking Held and the pass after next retries it; a release the inventory
// rejects as already over capacity is treated as already returned.
func (w *ExpirySweeper) expireBooking(ctx context.Context, booking *domain.Booking) error {
	for _, segment := range booking.Segments {
		_, err := w.inventory.ReleaseSeats(ctx, segment.FlightID, segment.Cabin, 1)
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrOverCapacity) || errors.Is(err, domain.ErrFlightNotFound) {
			w.log.Warn(fmt.Sprintf("Seat for booking %s on flight %s already returned: %v",
				booking.ID, segment.FlightID, err))
			continue
		}
		return fmt.Errorf("release flight %s %s: %w", segment.FlightID, segment.Cabin, err)
	}

	return w.persistExpired(ctx, booking)
}

// persistExpired flips the booking to Expired, re-reading after a version
// conflict in case a payment confirmation settled it first.
func (w *ExpirySweeper) persistExpired(ctx context.Context, booking *domain.Booking) error {
	current := booking
	for attempt := 0; ; attempt++ {
		if !current.IsHeld() {
			// Settled concurrently, nothing left to do.
			return nil
		}
		if err := current.Expire(); err != nil {
			return fmt.Errorf("expire booking %s: %w", current.ID, err)
		}

		err := w.tx.Transaction(ctx, func(ctx context.Context) error {
			return w.bookings.Save(ctx, current)
		})
		if err == nil {
			w.log.Info(fmt.Sprintf("Expired booking %s (pnr: %s)", current.ID, current.PnrCode))
			return nil
		}
		if !errors.Is(err, domain.ErrOptimisticLockConflict) || attempt >= saveRetries {
			return fmt.Errorf("persist expired booking %s: %w", current.ID, err)
		}

		fresh, findErr := w.bookings.FindByID(ctx, current.ID)
		if findErr != nil {
			return fmt.Errorf("reload booking %s: %w", current.ID, findErr)
		}
		if fresh == nil {
			return fmt.Errorf("booking %s disappeared during sweep: %w", current.ID, domain.ErrBookingNotFound)
		}
		current = fresh
	}
}

// GetStats returns sweeper statistics
func (w *ExpirySweeper) GetStats() *ExpirySweeperStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpirySweeperStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		LastSweepTime:    w.lastSweepTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}

// ExpirySweeperStats contains sweeper statistics
type ExpirySweeperStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	LastSweepTime    time.Time `json:"last_sweep_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}
