package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/metrics"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/pkg/logger"
	"github.com/bakate/aeroreserve/pkg/retry"
)

// ErrEngineStopped is returned for requests still queued when the engine
// shuts down.
var ErrEngineStopped = errors.New("inventory engine stopped")

// EngineConfig holds configuration for the inventory engine
type EngineConfig struct {
	// QueueCapacity bounds the request queue; submissions beyond it run inline
	QueueCapacity int
	// MaxBatchSize caps how many queued requests one batch drains
	MaxBatchSize int
	// OCCMaxRetries caps version-conflict retries per flight group
	OCCMaxRetries int
	// RetryInitialInterval is the first backoff interval after a version conflict
	RetryInitialInterval time.Duration
	// RetryMaxInterval caps the conflict backoff
	RetryMaxInterval time.Duration
	// HoldDuration is how long a held seat stays reserved before the
	// sweeper may reclaim it
	HoldDuration time.Duration
}

// DefaultEngineConfig returns default configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		QueueCapacity:        500,
		MaxBatchSize:         50,
		OCCMaxRetries:        10,
		RetryInitialInterval: 10 * time.Millisecond,
		RetryMaxInterval:     500 * time.Millisecond,
		HoldDuration:         30 * time.Minute,
	}
}

// HoldResult reports a successful hold: the availability snapshot the
// hold left behind, the fare it was priced at, and when the hold lapses
// unless the booking confirms.
type HoldResult struct {
	Availability  map[domain.CabinClass]*domain.SeatBucket
	UnitPrice     domain.Money
	TotalPrice    domain.Money
	SeatsHeld     int
	HoldExpiresAt time.Time
}

// ReleaseResult reports a successful release and the availability
// snapshot it produced.
type ReleaseResult struct {
	Availability  map[domain.CabinClass]*domain.SeatBucket
	SeatsReleased int
}

// opKind identifies the seat mutation a request carries.
type opKind int

const (
	opHold opKind = iota
	opRelease
)

// request is one seat operation waiting for the batch worker. done is
// buffered so the worker never blocks on a caller that gave up. The
// result fields are written by the worker before done is signalled and
// read by the submitter only after a nil outcome.
type request struct {
	op       opKind
	flightID string
	cabin    domain.CabinClass
	seats    int
	hold     *HoldResult
	release  *ReleaseResult
	done     chan error
}

// Engine serializes seat mutations through a single batch worker so
// concurrent holds on one flight fold into one optimistic write instead
// of racing each other on the version column. Availability reads are
// served from the cache when possible.
type Engine struct {
	repo   repository.InventoryRepository
	cache  repository.AvailabilityCache
	config *EngineConfig
	log    *logger.Logger

	requests chan *request
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewEngine creates a new inventory engine. The cache may be nil; the
// engine then reads and writes the repository only.
func NewEngine(
	repo repository.InventoryRepository,
	cache repository.AvailabilityCache,
	config *EngineConfig,
) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = 500
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 50
	}
	if config.OCCMaxRetries <= 0 {
		config.OCCMaxRetries = 10
	}
	if config.RetryInitialInterval <= 0 {
		config.RetryInitialInterval = 10 * time.Millisecond
	}
	if config.RetryMaxInterval <= 0 {
		config.RetryMaxInterval = 500 * time.Millisecond
	}
	if config.HoldDuration <= 0 {
		config.HoldDuration = 30 * time.Minute
	}

	return &Engine{
		repo:     repo,
		cache:    cache,
		config:   config,
		log:      logger.Get(),
		requests: make(chan *request, config.QueueCapacity),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the batch worker.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("inventory engine already running")
	}
	e.running = true
	e.mu.Unlock()

	e.log.Info("Starting inventory engine")

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

// Stop shuts the batch worker down and fails whatever is still queued
// with ErrEngineStopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.log.Info("Stopping inventory engine")
	close(e.stopCh)
	e.wg.Wait()
	e.log.Info("Inventory engine stopped")
}

// Running reports whether the batch worker is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// HoldSeats takes seats from a cabin and reports the snapshot, the fare
// and the hold expiry. The request is folded into the worker's next
// batch; when the queue is saturated it runs inline against the
// repository instead of waiting.
func (e *Engine) HoldSeats(ctx context.Context, flightID string, cabin domain.CabinClass, seats int) (*HoldResult, error) {
	req := &request{
		op:       opHold,
		flightID: flightID,
		cabin:    cabin,
		seats:    seats,
		done:     make(chan error, 1),
	}
	if err := e.submit(ctx, req); err != nil {
		return nil, err
	}
	return req.hold, nil
}

// ReleaseSeats returns seats to a cabin with the same queueing behavior
// as HoldSeats.
func (e *Engine) ReleaseSeats(ctx context.Context, flightID string, cabin domain.CabinClass, seats int) (*ReleaseResult, error) {
	req := &request{
		op:       opRelease,
		flightID: flightID,
		cabin:    cabin,
		seats:    seats,
		done:     make(chan error, 1),
	}
	if err := e.submit(ctx, req); err != nil {
		return nil, err
	}
	return req.release, nil
}

// GetAvailability returns per-cabin seat availability for a flight,
// serving from the cache when possible and falling back to the
// repository on a miss.
func (e *Engine) GetAvailability(ctx context.Context, flightID string) (map[domain.CabinClass]*domain.SeatBucket, error) {
	if e.cache != nil {
		cached, err := e.cache.Get(ctx, flightID)
		if err != nil {
			e.log.Warn(fmt.Sprintf("Availability cache read failed for flight %s: %v", flightID, err))
		} else if cached != nil {
			metrics.RecordCacheHit(ctx)
			return cached, nil
		}
		metrics.RecordCacheMiss(ctx)
	}

	inv, err := e.repo.FindByFlightID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("flight %s: %w", flightID, domain.ErrFlightNotFound)
	}

	snapshot := inv.Snapshot().Availability
	if e.cache != nil {
		if err := e.cache.Set(ctx, flightID, snapshot); err != nil {
			e.log.Warn(fmt.Sprintf("Failed to backfill availability cache for flight %s: %v", flightID, err))
		}
	}
	return snapshot, nil
}

// submit enqueues a request and waits for its outcome. A full queue or
// a stopped worker degrades to the inline path so callers always get an
// answer.
func (e *Engine) submit(ctx context.Context, req *request) error {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	if !running {
		return e.applyInline(ctx, req)
	}

	select {
	case e.requests <- req:
		metrics.RecordQueueDepth(ctx, 1)
	default:
		metrics.RecordQueueFullFallback(ctx)
		return e.applyInline(ctx, req)
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		// The worker will still process the enqueued request; undo a
		// hold that commits after the caller stopped listening, since
		// no booking row will ever point the sweeper at it.
		go e.undoAbandoned(context.WithoutCancel(ctx), req)
		return ctx.Err()
	}
}

// undoAbandoned waits out a request whose submitter gave up and returns
// a hold that still committed. Abandoned releases need no undo; the
// seats are back in the pool either way.
func (e *Engine) undoAbandoned(ctx context.Context, req *request) {
	if err := <-req.done; err != nil || req.op != opHold {
		return
	}
	if _, err := e.ReleaseSeats(ctx, req.flightID, req.cabin, req.seats); err != nil {
		e.log.Error(fmt.Sprintf("Failed to return abandoned hold of %d seats on flight %s: %v",
			req.seats, req.flightID, err))
	}
}

// applyInline runs a single request as its own group, bypassing the queue.
func (e *Engine) applyInline(ctx context.Context, req *request) error {
	e.applyGroup(ctx, req.flightID, []*request{req})
	return <-req.done
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			e.failPending(ctx.Err())
			return
		case <-e.stopCh:
			e.failPending(ErrEngineStopped)
			return
		case req := <-e.requests:
			e.processBatch(ctx, e.drainBatch(req))
		}
	}
}

// failPending rejects whatever is still queued at shutdown so callers
// blocked on submit do not wait forever.
func (e *Engine) failPending(err error) {
	for {
		select {
		case req := <-e.requests:
			req.done <- err
		default:
			return
		}
	}
}

// drainBatch gathers up to MaxBatchSize requests without blocking.
func (e *Engine) drainBatch(first *request) []*request {
	batch := make([]*request, 1, e.config.MaxBatchSize)
	batch[0] = first
	for len(batch) < e.config.MaxBatchSize {
		select {
		case req := <-e.requests:
			batch = append(batch, req)
		default:
			return batch
		}
	}
	return batch
}

func (e *Engine) processBatch(ctx context.Context, batch []*request) {
	start := time.Now()
	metrics.RecordQueueDepth(ctx, -int64(len(batch)))

	groups := make(map[string][]*request)
	for _, req := range batch {
		groups[req.flightID] = append(groups[req.flightID], req)
	}

	for flightID, group := range groups {
		e.applyGroup(ctx, flightID, group)
	}

	metrics.RecordBatch(ctx, len(batch), time.Since(start).Seconds())
}

// applyGroup folds one flight's requests onto a freshly loaded aggregate
// and persists the result with a single write. A version conflict
// rereads and refolds the whole group; a request the fold rejects keeps
// its own error and never reaches the write.
func (e *Engine) applyGroup(ctx context.Context, flightID string, group []*request) {
	outcomes := make([]error, len(group))

	cfg := &retry.Config{
		MaxRetries:      e.config.OCCMaxRetries,
		InitialInterval: e.config.RetryInitialInterval,
		MaxInterval:     e.config.RetryMaxInterval,
		Multiplier:      2.0,
	}

	result := retry.Do(ctx, cfg, func(ctx context.Context) error {
		inv, err := e.repo.FindByFlightID(ctx, flightID)
		if err != nil {
			return retry.Permanent(err)
		}
		if inv == nil {
			return retry.Permanent(fmt.Errorf("flight %s: %w", flightID, domain.ErrFlightNotFound))
		}

		applied := 0
		for i, req := range group {
			outcomes[i] = e.applyRequest(inv, req)
			if outcomes[i] == nil {
				applied++
			}
		}
		if applied == 0 {
			// Every request was rejected on a current snapshot, nothing to write.
			return nil
		}

		if err := e.repo.Save(ctx, inv); err != nil {
			if errors.Is(err, domain.ErrOptimisticLockConflict) {
				metrics.RecordOCCConflict(ctx, flightID)
				return err
			}
			return retry.Permanent(err)
		}

		e.refreshCache(ctx, inv)
		return nil
	})

	for i, req := range group {
		outcome := outcomes[i]
		if result.Err != nil {
			outcome = result.Err
		}
		e.recordOutcome(ctx, req, outcome)
		req.done <- outcome
	}
}

func (e *Engine) applyRequest(inv *domain.FlightInventory, req *request) error {
	switch req.op {
	case opHold:
		if err := inv.Hold(req.cabin, req.seats); err != nil {
			return err
		}
		bucket, err := inv.Bucket(req.cabin)
		if err != nil {
			return err
		}
		total, err := bucket.Price.MultiplySeats(req.seats)
		if err != nil {
			return err
		}
		req.hold = &HoldResult{
			Availability:  inv.Snapshot().Availability,
			UnitPrice:     bucket.Price,
			TotalPrice:    total,
			SeatsHeld:     req.seats,
			HoldExpiresAt: time.Now().Add(e.config.HoldDuration),
		}
		return nil
	case opRelease:
		if err := inv.Release(req.cabin, req.seats); err != nil {
			return err
		}
		req.release = &ReleaseResult{
			Availability:  inv.Snapshot().Availability,
			SeatsReleased: req.seats,
		}
		return nil
	default:
		return fmt.Errorf("unknown inventory operation %d", req.op)
	}
}

// refreshCache writes the persisted snapshot through to the cache.
// Failures are logged only; the cache is advisory.
func (e *Engine) refreshCache(ctx context.Context, inv *domain.FlightInventory) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, inv.FlightID, inv.Snapshot().Availability); err != nil {
		e.log.Warn(fmt.Sprintf("Failed to refresh availability cache for flight %s: %v", inv.FlightID, err))
	}
}

func (e *Engine) recordOutcome(ctx context.Context, req *request, err error) {
	result := "success"
	if err != nil {
		result = "rejected"
	}
	switch req.op {
	case opHold:
		metrics.RecordSeatHold(ctx, req.flightID, string(req.cabin), result)
	case opRelease:
		metrics.RecordSeatRelease(ctx, req.flightID, string(req.cabin), result)
	}
}
