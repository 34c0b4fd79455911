package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"salon/kiosk-service/internal/metrics"
	"salon/kiosk-service/internal/store"
)

const (
	DefaultRelayName     = "nats"
	DefaultSubjectPrefix = "salon."
	defaultBatchSize     = 100
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type Config struct {
	Name          string
	SubjectPrefix string
	BatchSize     int
}

// Relay forwards committed outbox rows to a broker. A row is marked
// published only after the broker accepted it, so delivery is at least once
// and a row that commits late is still picked up.
type Relay struct {
	store     store.OutboxStore
	publisher Publisher
	name      string
	prefix    string
	batchSize int
	logger    zerolog.Logger
}

func NewRelay(st store.OutboxStore, publisher Publisher, cfg Config, logger zerolog.Logger) *Relay {
	name := cfg.Name
	if name == "" {
		name = DefaultRelayName
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Relay{
		store:     st,
		publisher: publisher,
		name:      name,
		prefix:    prefix,
		batchSize: batch,
		logger:    logger.With().Str("ctx", "outbox").Str("relay", name).Logger(),
	}
}

// Run publishes one batch and returns the number of events forwarded.
func (r *Relay) Run(ctx context.Context) (int, error) {
	published, err := r.store.RelayOutboxBatch(ctx, r.batchSize, r.publish)
	if err != nil {
		return published, fmt.Errorf("relay outbox: %w", err)
	}
	return published, nil
}

// publish stops at the first failure so later events never overtake an
// earlier one for the same entity.
func (r *Relay) publish(ctx context.Context, events []store.OutboxEvent) (int, error) {
	for i, event := range events {
		if err := r.publisher.Publish(ctx, r.Subject(event.Type), event.Payload); err != nil {
			return i, fmt.Errorf("publish %s: %w", event.EventID, err)
		}
		metrics.OutboxPublished.Inc()
	}
	return len(events), nil
}

func (r *Relay) Subject(eventType string) string {
	return r.prefix + eventType
}

// Start runs the relay on every tick until ctx is cancelled.
func Start(ctx context.Context, interval time.Duration, r *Relay) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := r.Run(ctx)
			if err != nil {
				metrics.OutboxErrors.Inc()
				r.logger.Error().Err(err).Int("published", count).Msg("outbox relay error")
				continue
			}
			if count > 0 {
				r.logger.Debug().Int("published", count).Msg("outbox batch relayed")
			}
		}
	}
}
