package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/event"
	"github.com/richardliu001/location-service/internal/metrics"
	"github.com/richardliu001/location-service/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const finalizeTimeout = 5 * time.Second

// Store is the slice of the repository the dispatcher needs.
type Store interface {
	DB(ctx context.Context) *gorm.DB
	FetchDispatchable(ctx context.Context, limit, maxRetry int, now time.Time) ([]model.OutboxEvent, error)
	ClaimOutboxEvent(ctx context.Context, id uint64, worker string, maxRetry int, now, until time.Time) (bool, error)
	MarkOutboxPublished(ctx context.Context, tx *gorm.DB, id uint64, worker string) error
	MarkOutboxFailed(ctx context.Context, tx *gorm.DB, id uint64, worker, reason string) error
	ReleaseOutboxClaim(ctx context.Context, tx *gorm.DB, id uint64, worker string) error
	CountDeadOutboxEvents(ctx context.Context, maxRetry int) (int64, error)
}

// Dispatcher relays outbox rows to the broker. Rows are leased before
// publishing so several workers, in one process or many, never publish the
// same row concurrently.
type Dispatcher struct {
	store   Store
	router  *event.Router
	pub     Publisher
	metrics *metrics.OutboxMetrics
	log     *zap.SugaredLogger

	instance       string
	batchSize      int
	maxRetry       int
	pollInterval   time.Duration
	publishTimeout time.Duration
	claimTTL       time.Duration
	now            func() time.Time
}

func NewDispatcher(cfg *config.Config, store Store, router *event.Router, pub Publisher, m *metrics.OutboxMetrics, log *zap.SugaredLogger) *Dispatcher {
	claimTTL := cfg.Outbox.ClaimTTL
	// a lease shorter than a publish would let another worker take the row mid-flight
	if floor := cfg.Kafka.PublishTimeout + finalizeTimeout; claimTTL < floor {
		claimTTL = floor
	}
	return &Dispatcher{
		store:          store,
		router:         router,
		pub:            pub,
		metrics:        m,
		log:            log,
		instance:       uuid.NewString()[:8],
		batchSize:      cfg.Outbox.BatchSize,
		maxRetry:       cfg.Outbox.MaxRetryCount,
		pollInterval:   cfg.Outbox.PollInterval,
		publishTimeout: cfg.Kafka.PublishTimeout,
		claimTTL:       claimTTL,
		now:            time.Now,
	}
}

// Start runs workers polling loops until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := fmt.Sprintf("%s-%d", d.instance, i)
		g.Go(func() error { return d.Run(gctx, worker) })
	}
	return g.Wait()
}

// Run polls at a fixed interval as worker until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, worker string) error {
	d.log.Infow("outbox worker started", "worker", worker, "interval", d.pollInterval.String())
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Infow("outbox worker stopped", "worker", worker)
			return nil
		case <-ticker.C:
		}
		if _, err := d.DispatchBatch(ctx, worker); err != nil && ctx.Err() == nil {
			d.log.Errorw("outbox batch failed", "worker", worker, "error", err)
		}
		d.refreshDeadGauge(ctx)
	}
}

// DispatchBatch fetches one batch and attempts every row in order. It returns
// the number of rows published.
func (d *Dispatcher) DispatchBatch(ctx context.Context, worker string) (int, error) {
	recs, err := d.store.FetchDispatchable(ctx, d.batchSize, d.maxRetry, d.now())
	if err != nil {
		return 0, fmt.Errorf("fetch outbox batch: %w", err)
	}
	published := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		if d.dispatch(ctx, worker, rec) {
			published++
		}
	}
	return published, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, worker string, rec model.OutboxEvent) bool {
	if rec.RetryCount >= d.maxRetry {
		return false
	}
	now := d.now()
	ok, err := d.store.ClaimOutboxEvent(ctx, rec.ID, worker, d.maxRetry, now, now.Add(d.claimTTL))
	if err != nil {
		d.log.Errorw("outbox claim failed", "worker", worker, "event_id", rec.EventID, "error", err)
		return false
	}
	if !ok {
		return false
	}

	pubErr := d.publish(ctx, rec)

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if pubErr == nil {
		err := d.store.DB(fctx).Transaction(func(tx *gorm.DB) error {
			return d.store.MarkOutboxPublished(fctx, tx, rec.ID, worker)
		})
		if err != nil {
			d.log.Errorw("outbox mark published failed", "worker", worker, "event_id", rec.EventID, "error", err)
			return false
		}
		d.metrics.IncPublished(rec.AggregateType)
		d.log.Infow("outbox event published",
			"event_id", rec.EventID,
			"aggregate_type", rec.AggregateType,
			"aggregate_id", rec.AggregateID,
			"event_type", rec.EventType,
		)
		return true
	}

	// interrupted by shutdown, not by the broker: hand the row back untouched
	if ctx.Err() != nil {
		err := d.store.DB(fctx).Transaction(func(tx *gorm.DB) error {
			return d.store.ReleaseOutboxClaim(fctx, tx, rec.ID, worker)
		})
		if err != nil {
			d.log.Errorw("outbox release claim failed", "worker", worker, "event_id", rec.EventID, "error", err)
		} else {
			d.log.Infow("outbox publish interrupted, claim released", "worker", worker, "event_id", rec.EventID)
		}
		return false
	}

	err = d.store.DB(fctx).Transaction(func(tx *gorm.DB) error {
		return d.store.MarkOutboxFailed(fctx, tx, rec.ID, worker, pubErr.Error())
	})
	if err != nil {
		d.log.Errorw("outbox mark failed failed", "worker", worker, "event_id", rec.EventID, "error", err)
		return false
	}
	d.metrics.IncFailed(rec.AggregateType)

	retries := rec.RetryCount + 1
	fields := []interface{}{
		"event_id", rec.EventID,
		"aggregate_type", rec.AggregateType,
		"aggregate_id", rec.AggregateID,
		"event_type", rec.EventType,
		"retry_count", retries,
		"error", pubErr,
	}
	if retries >= d.maxRetry {
		d.metrics.IncDead(rec.AggregateType)
		d.log.Errorw("outbox event reached retry ceiling", fields...)
	} else {
		d.log.Warnw("outbox publish failed", fields...)
	}
	return false
}

func (d *Dispatcher) publish(ctx context.Context, rec model.OutboxEvent) error {
	msg, err := d.router.Route(rec)
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	start := d.now()
	err = d.pub.Publish(pctx, msg)
	d.metrics.ObservePublish(rec.AggregateType, d.now().Sub(start))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("publish to %s timed out after %s: %w", msg.Topic, d.publishTimeout, err)
	}
	if err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	return nil
}

func (d *Dispatcher) refreshDeadGauge(ctx context.Context) {
	n, err := d.store.CountDeadOutboxEvents(ctx, d.maxRetry)
	if err != nil {
		if ctx.Err() == nil {
			d.log.Warnw("count dead outbox events failed", "error", err)
		}
		return
	}
	d.metrics.SetDeadRecords(n)
}
