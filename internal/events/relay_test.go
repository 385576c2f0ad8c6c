package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository/memory"
)

type published struct {
	key, eventType string
	payload        []byte
}

type fakePublisher struct {
	sent []published
	fail map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, key, eventType string, payload []byte) error {
	if p.fail[eventType] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{key, eventType, payload})
	return nil
}

func (p *fakePublisher) Topic() string { return "test" }
func (p *fakePublisher) Close() error  { return nil }

func seed(t *testing.T, store *memory.Store, eventTypes ...string) {
	t.Helper()
	for _, et := range eventTypes {
		require.NoError(t, store.Outbox().Create(context.Background(), &models.OutboxEvent{
			AggregateType: "prosthetic_order",
			AggregateID:   "order-1",
			EventType:     et,
			Payload:       []byte(`{"orderId":"order-1"}`),
		}))
	}
}

func newRelay(store *memory.Store, pub Publisher, maxRetries int) *Relay {
	cfg := config.OutboxConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10, MaxRetries: maxRetries}
	return NewRelay(store.Outbox(), pub, cfg, zerolog.Nop(), nil)
}

func TestProcessPendingPublishesInOrder(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "order.created", "order.status_changed")
	pub := &fakePublisher{}
	relay := newRelay(store, pub, 5)

	n, err := relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "order.created", pub.sent[0].eventType)
	assert.Equal(t, "prosthetic_order-order-1", pub.sent[0].key)

	pending, err := relay.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)

	n, err = relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProcessPendingRetriesUntilLimit(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "order.comment_added")
	pub := &fakePublisher{fail: map[string]bool{"order.comment_added": true}}
	relay := newRelay(store, pub, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := relay.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}

	events, err := store.Outbox().ListPending(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].RetryCount)
	assert.Equal(t, "broker unavailable", events[0].ErrorMessage)
}

func TestPurgeRemovesOldProcessedEvents(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "order.created")
	relay := newRelay(store, &fakePublisher{}, 5)
	ctx := context.Background()

	_, err := relay.ProcessPending(ctx)
	require.NoError(t, err)

	removed, err := relay.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	relay.retention = -time.Minute
	removed, err = relay.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStartStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "order.created")
	pub := &fakePublisher{}
	relay := newRelay(store, pub, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := relay.Start(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, pub.sent, 1)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Topic: "orders"}, zerolog.Nop())
	assert.Error(t, err)

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "orders"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "orders", p.Topic())
	assert.NoError(t, p.Close())
}
