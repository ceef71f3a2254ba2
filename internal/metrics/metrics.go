package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bakate/aeroreserve/pkg/telemetry"
)

var (
	// Inventory engine counters
	SeatHolds         *telemetry.Counter
	SeatReleases      *telemetry.Counter
	OCCConflicts      *telemetry.Counter
	QueueFullFallback *telemetry.Counter
	CacheHits         *telemetry.Counter
	CacheMisses       *telemetry.Counter

	// Booking saga counters
	BookingsCreated   *telemetry.Counter
	BookingsConfirmed *telemetry.Counter
	BookingsCancelled *telemetry.Counter
	BookingsExpired   *telemetry.Counter
	PnrCollisions     *telemetry.Counter
	TicketsIssued     *telemetry.Counter

	// Notification counters
	NotificationsSent   *telemetry.Counter
	NotificationsFailed *telemetry.Counter

	// Outbox counters
	OutboxPublished *telemetry.Counter
	OutboxFailed    *telemetry.Counter

	// Histograms
	BatchSize       *telemetry.Histogram
	PersistDuration *telemetry.Histogram
	SagaDuration    *telemetry.Histogram
	SweepDuration   *telemetry.Histogram

	// Gauges
	QueueDepth *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all application metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	// Inventory engine counters
	SeatHolds, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "inventory_seat_holds_total",
		Description: "Total number of seat hold requests by result",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SeatReleases, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "inventory_seat_releases_total",
		Description: "Total number of seat release requests by result",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OCCConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "inventory_occ_conflicts_total",
		Description: "Total number of optimistic lock conflicts during persists",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueFullFallback, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "inventory_queue_full_total",
		Description: "Total number of requests served inline because the queue was full",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CacheHits, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "availability_cache_hits_total",
		Description: "Total number of availability reads served from cache",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CacheMisses, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "availability_cache_misses_total",
		Description: "Total number of availability reads that fell through to the database",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Booking saga counters
	BookingsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "bookings_created_total",
		Description: "Total number of bookings placed on hold",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "bookings_confirmed_total",
		Description: "Total number of bookings confirmed after payment",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "bookings_cancelled_total",
		Description: "Total number of bookings cancelled by reason",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "bookings_expired_total",
		Description: "Total number of held bookings reclaimed by the sweeper",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PnrCollisions, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "pnr_collisions_total",
		Description: "Total number of generated record locators already in use",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TicketsIssued, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "tickets_issued_total",
		Description: "Total number of tickets issued",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Notification counters
	NotificationsSent, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "notifications_sent_total",
		Description: "Total number of ticket notifications delivered",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	NotificationsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "notifications_failed_total",
		Description: "Total number of ticket notifications that gave up",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Outbox counters
	OutboxPublished, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "outbox_published_total",
		Description: "Total number of outbox entries dispatched",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OutboxFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "outbox_failed_total",
		Description: "Total number of outbox dispatch failures",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Histograms
	BatchSize, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "inventory_batch_size",
		Description: "Requests folded into one inventory batch",
		Unit:        "1",
	}, []float64{1, 2, 5, 10, 20, 35, 50})
	if err != nil {
		return err
	}

	PersistDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "inventory_persist_duration_seconds",
		Description: "Duration of one flight-group persist including retries",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5})
	if err != nil {
		return err
	}

	SagaDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_saga_duration_seconds",
		Description: "Duration of the booking saga from hold to outcome",
		Unit:        "s",
	}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30})
	if err != nil {
		return err
	}

	SweepDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "expiry_sweep_duration_seconds",
		Description: "Duration of one expiry sweeper pass",
		Unit:        "s",
	}, []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60})
	if err != nil {
		return err
	}

	// Gauge for queued inventory requests
	QueueDepth, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "inventory_queue_depth",
		Description: "Current number of queued inventory requests",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordSeatHold records a hold request outcome
func RecordSeatHold(ctx context.Context, flightID, cabin, result string) {
	if SeatHolds != nil {
		SeatHolds.Inc(ctx,
			attribute.String("flight_id", flightID),
			attribute.String("cabin", cabin),
			attribute.String("result", result),
		)
	}
}

// RecordSeatRelease records a release request outcome
func RecordSeatRelease(ctx context.Context, flightID, cabin, result string) {
	if SeatReleases != nil {
		SeatReleases.Inc(ctx,
			attribute.String("flight_id", flightID),
			attribute.String("cabin", cabin),
			attribute.String("result", result),
		)
	}
}

// RecordOCCConflict records a version conflict on persist
func RecordOCCConflict(ctx context.Context, flightID string) {
	if OCCConflicts != nil {
		OCCConflicts.Inc(ctx,
			attribute.String("flight_id", flightID),
		)
	}
}

// RecordQueueFullFallback records a request served on the inline path
func RecordQueueFullFallback(ctx context.Context) {
	if QueueFullFallback != nil {
		QueueFullFallback.Inc(ctx)
	}
}

// RecordQueueDepth adjusts the queued request gauge
func RecordQueueDepth(ctx context.Context, delta int64) {
	if QueueDepth != nil {
		QueueDepth.Add(ctx, delta)
	}
}

// RecordCacheHit records an availability read served from cache
func RecordCacheHit(ctx context.Context) {
	if CacheHits != nil {
		CacheHits.Inc(ctx)
	}
}

// RecordCacheMiss records an availability read that fell through
func RecordCacheMiss(ctx context.Context) {
	if CacheMisses != nil {
		CacheMisses.Inc(ctx)
	}
}

// RecordBatch records one drained batch and its persist duration
func RecordBatch(ctx context.Context, requests int, durationSeconds float64) {
	if BatchSize != nil {
		BatchSize.Record(ctx, float64(requests))
	}
	if PersistDuration != nil {
		PersistDuration.Record(ctx, durationSeconds)
	}
}

// RecordBookingCreated records a booking entering the held state
func RecordBookingCreated(ctx context.Context) {
	if BookingsCreated != nil {
		BookingsCreated.Inc(ctx)
	}
}

// RecordBookingConfirmed records a booking confirmation and the saga duration
func RecordBookingConfirmed(ctx context.Context, durationSeconds float64) {
	if BookingsConfirmed != nil {
		BookingsConfirmed.Inc(ctx)
	}
	if SagaDuration != nil {
		SagaDuration.Record(ctx, durationSeconds,
			attribute.String("outcome", "confirmed"),
		)
	}
}

// RecordBookingCancelled records a compensated booking by reason
func RecordBookingCancelled(ctx context.Context, reason string) {
	if BookingsCancelled != nil {
		BookingsCancelled.Inc(ctx,
			attribute.String("reason", reason),
		)
	}
}

// RecordBookingsExpired records held bookings reclaimed in one sweep
func RecordBookingsExpired(ctx context.Context, count int64) {
	if BookingsExpired != nil {
		BookingsExpired.Add(ctx, count)
	}
}

// RecordPnrCollision records a generated locator that was already held
func RecordPnrCollision(ctx context.Context) {
	if PnrCollisions != nil {
		PnrCollisions.Inc(ctx)
	}
}

// RecordTicketIssued records a ticket issuance
func RecordTicketIssued(ctx context.Context) {
	if TicketsIssued != nil {
		TicketsIssued.Inc(ctx)
	}
}

// RecordNotificationSent records a delivered ticket notification
func RecordNotificationSent(ctx context.Context) {
	if NotificationsSent != nil {
		NotificationsSent.Inc(ctx)
	}
}

// RecordNotificationFailed records a notification that exhausted retries
func RecordNotificationFailed(ctx context.Context, reason string) {
	if NotificationsFailed != nil {
		NotificationsFailed.Inc(ctx,
			attribute.String("reason", reason),
		)
	}
}

// RecordOutboxPublished records a dispatched outbox entry
func RecordOutboxPublished(ctx context.Context, topic, eventType string) {
	if OutboxPublished != nil {
		OutboxPublished.Inc(ctx,
			attribute.String("topic", topic),
			attribute.String("event_type", eventType),
		)
	}
}

// RecordOutboxFailed records a failed outbox dispatch
func RecordOutboxFailed(ctx context.Context, topic, eventType string) {
	if OutboxFailed != nil {
		OutboxFailed.Inc(ctx,
			attribute.String("topic", topic),
			attribute.String("event_type", eventType),
		)
	}
}

// RecordSweep records one expiry sweeper pass
func RecordSweep(ctx context.Context, durationSeconds float64) {
	if SweepDuration != nil {
		SweepDuration.Record(ctx, durationSeconds)
	}
}
