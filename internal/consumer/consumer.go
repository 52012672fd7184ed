// Package consumer feeds completed-payment events from the outbox table into
// the split engine. Multiple workers may run concurrently; the claim query
// guarantees each event is handed to exactly one of them.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/msantanna/splitledger/internal/domain"
	"github.com/msantanna/splitledger/internal/metrics"
)

type eventStore interface {
	ClaimPending(ctx context.Context, limit int) ([]domain.PaymentEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type splitEngine interface {
	ProcessPaymentSplit(ctx context.Context, paymentID uuid.UUID) ([]domain.SplitExecution, error)
}

type Consumer struct {
	events    eventStore
	engine    splitEngine
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func New(events eventStore, engine splitEngine, logger *slog.Logger, interval time.Duration, batchSize int) *Consumer {
	return &Consumer{
		events:    events,
		engine:    engine,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("payment event consumer started", "interval", c.interval, "batch_size", c.batchSize)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("payment event consumer stopped")
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Consumer) poll(ctx context.Context) {
	events, err := c.events.ClaimPending(ctx, c.batchSize)
	if err != nil {
		c.logger.Error("failed to claim payment events", "error", err)
		return
	}

	for _, event := range events {
		if err := c.processEvent(ctx, event); err != nil {
			c.logger.Error("failed to process payment event",
				"event_id", event.ID,
				"payment_id", event.PaymentID,
				"error", err,
			)
		}
	}
}

// processEvent runs the engine for one claimed event. Engine errors mark the
// event failed rather than releasing it; re-runs are safe, so operators can
// flip a failed event back to pending once the cause is fixed.
func (c *Consumer) processEvent(ctx context.Context, event domain.PaymentEvent) error {
	_, err := c.engine.ProcessPaymentSplit(ctx, event.PaymentID)
	if err != nil {
		c.logger.Warn("split run failed for event",
			"event_id", event.ID,
			"payment_id", event.PaymentID,
			"error", err,
		)
		metrics.EventsProcessed.WithLabelValues("failed").Inc()
		return c.events.MarkFailed(ctx, event.ID)
	}

	metrics.EventsProcessed.WithLabelValues("processed").Inc()
	return c.events.MarkProcessed(ctx, event.ID)
}
