package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/printforge/printforge-backend/pkg/config"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/metrics"
	"github.com/printforge/printforge-backend/pkg/outbox"
)

const dispatchJob = "outbox_dispatch"

// Dispatcher polls unpublished outbox events and feeds them to the consumer.
// Events that keep failing stop being retried once max attempts is reached.
type Dispatcher struct {
	outboxRepo *outbox.Repository
	consumer   *Consumer
	cfg        config.OutboxConfig
	metrics    *metrics.WorkerMetrics
	logg       *logger.Logger
}

// NewDispatcher builds the polling dispatcher.
func NewDispatcher(outboxRepo *outbox.Repository, consumer *Consumer, cfg config.OutboxConfig, workerMetrics *metrics.WorkerMetrics, logg *logger.Logger) (*Dispatcher, error) {
	if outboxRepo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 500
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Dispatcher{
		outboxRepo: outboxRepo,
		consumer:   consumer,
		cfg:        cfg,
		metrics:    workerMetrics,
		logg:       logg,
	}, nil
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := time.Duration(d.cfg.PollIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && d.logg != nil {
				d.logg.Error(ctx, "outbox dispatch pass failed", err)
			}
		}
	}
}

// DispatchOnce processes at most one batch and reports how many events were
// published.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	started := time.Now()
	events, err := d.outboxRepo.FetchUnpublished(d.cfg.BatchSize)
	if err != nil {
		d.metrics.IncFailure(dispatchJob)
		return 0, fmt.Errorf("fetch unpublished events: %w", err)
	}

	published := 0
	for _, event := range events {
		if err := d.dispatchEvent(ctx, event); err != nil {
			if d.logg != nil {
				logCtx := d.logg.WithField(ctx, "event_id", event.ID.String())
				d.logg.Error(logCtx, "dispatch event failed", err)
			}
			continue
		}
		published++
	}

	d.metrics.ObserveDuration(dispatchJob, time.Since(started))
	d.metrics.IncSuccess(dispatchJob)
	return published, nil
}

func (d *Dispatcher) dispatchEvent(ctx context.Context, event models.OutboxEvent) error {
	if event.AttemptCount >= d.cfg.MaxAttempts {
		// poisoned event: park it as published so the queue keeps moving
		if d.logg != nil {
			logCtx := d.logg.WithField(ctx, "event_id", event.ID.String())
			d.logg.Warn(logCtx, "outbox event exceeded max attempts, skipping")
		}
		return d.outboxRepo.MarkPublished(event.ID)
	}

	if err := d.consumer.Handle(ctx, event); err != nil {
		if markErr := d.outboxRepo.MarkFailed(event.ID, err); markErr != nil {
			return markErr
		}
		return err
	}
	return d.outboxRepo.MarkPublished(event.ID)
}
