package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/metrics"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

const (
	defaultRetention = 7 * 24 * time.Hour
	purgeEvery       = time.Hour
)

// Relay polls the outbox and publishes pending events in creation order.
// An event that fails maxRetries times is left in the table with its last error.
type Relay struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	cfg       config.OutboxConfig
	retention time.Duration
	log       zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	lastPurge time.Time
}

func NewRelay(outbox repository.OutboxRepository, publisher Publisher, cfg config.OutboxConfig, log zerolog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		retention: defaultRetention,
		log:       log.With().Str("component", "outbox_relay").Logger(),
		metrics:   m,
		now:       time.Now,
	}
}

// Start runs until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.log.Info().
		Dur("poll_interval", r.cfg.PollInterval).
		Int("batch_size", r.cfg.BatchSize).
		Str("topic", r.publisher.Topic()).
		Msg("outbox relay started")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ProcessPending(ctx); err != nil {
				r.log.Error().Err(err).Msg("failed to process outbox")
			}
			if r.now().Sub(r.lastPurge) >= purgeEvery {
				if _, err := r.Purge(ctx); err != nil {
					r.log.Error().Err(err).Msg("failed to purge outbox")
				}
			}
		}
	}
}

// ProcessPending publishes one batch and returns how many events went out.
func (r *Relay) ProcessPending(ctx context.Context) (int, error) {
	events, err := r.outbox.ListPending(ctx, r.cfg.MaxRetries, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if err := r.publish(ctx, event); err != nil {
			r.metrics.OutboxPublished(false)
			r.log.Warn().Err(err).Str("event_id", event.ID).Int("retry_count", event.RetryCount+1).Msg("event not published")
			if markErr := r.outbox.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				r.log.Error().Err(markErr).Str("event_id", event.ID).Msg("failed to record publish error")
			}
			continue
		}
		r.metrics.OutboxPublished(true)
		published++
	}
	r.log.Debug().Int("published", published).Int("batch", len(events)).Msg("outbox batch processed")
	return published, nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent) error {
	key := event.AggregateType + "-" + event.AggregateID
	if err := r.publisher.Publish(ctx, key, event.EventType, event.Payload); err != nil {
		return err
	}
	publishedAt := r.now()
	if err := r.outbox.MarkProcessed(ctx, event.ID, publishedAt, r.now()); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

// Purge removes processed events older than the retention window.
func (r *Relay) Purge(ctx context.Context) (int64, error) {
	r.lastPurge = r.now()
	removed, err := r.outbox.PurgeProcessed(ctx, r.now().Add(-r.retention))
	if err != nil {
		return 0, fmt.Errorf("purge processed events: %w", err)
	}
	if removed > 0 {
		r.log.Info().Int64("removed", removed).Msg("processed outbox events purged")
	}
	return removed, nil
}

// Pending reports the number of unprocessed events.
func (r *Relay) Pending(ctx context.Context) (int64, error) {
	return r.outbox.CountPending(ctx)
}
