package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appoutbox "motorent/internal/app/outbox"
	"motorent/internal/infra/outbox"
	"motorent/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	mu        sync.Mutex
	publishFn func(n int) error
	calls     int
	sent      []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.publishFn != nil {
		if err := p.publishFn(p.calls); err != nil {
			return err
		}
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func (p *fakeProducer) snapshot() (int, []published) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]published(nil), p.sent...)
}

func addEvent(t *testing.T, box *memory.Outbox, id, name string) {
	t.Helper()
	require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"bk-1"}`),
		OccurredAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
		Aggregate:  "bk-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}))
}

func TestDrainPublishesCloudEventsOnce(t *testing.T) {
	store := memory.NewStore()
	box := store.Outbox()
	addEvent(t, box, "evt-1", "booking.confirmed")
	producer := &fakeProducer{}
	w := &outbox.Worker{Source: box, Producer: producer, TopicPrefix: "dev.", SourceURI: "motorent/bookings"}

	require.NoError(t, w.Drain(context.Background()))
	require.NoError(t, w.Drain(context.Background()))

	calls, sent := producer.snapshot()
	require.Equal(t, 1, calls)
	require.Equal(t, "dev.booking.events.v1", sent[0].topic)
	require.Equal(t, "bk-1", sent[0].key)
	require.Equal(t, "application/cloudevents+json", sent[0].headers["content-type"])
	require.Equal(t, "00-abc-def-01", sent[0].headers["traceparent"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(sent[0].payload, &evt))
	require.Equal(t, "booking.confirmed.v1", evt["type"])
	require.Equal(t, "motorent/bookings", evt["source"])
	require.Equal(t, "evt-1", evt["id"])
	require.Equal(t, map[string]any{"booking_id": "bk-1"}, evt["data"])
}

func TestFailedPublishIsRetriedAfterBackoff(t *testing.T) {
	store := memory.NewStore()
	box := store.Outbox()
	addEvent(t, box, "evt-1", "booking.failed")
	producer := &fakeProducer{publishFn: func(n int) error {
		if n == 1 {
			return errors.New("broker down")
		}
		return nil
	}}
	w := &outbox.Worker{Source: box, Producer: producer, Backoff: []time.Duration{0}}

	require.NoError(t, w.Drain(context.Background()))
	calls, sent := producer.snapshot()
	require.Equal(t, 1, calls)
	require.Empty(t, sent)

	require.NoError(t, w.Drain(context.Background()))
	calls, sent = producer.snapshot()
	require.Equal(t, 2, calls)
	require.Len(t, sent, 1)
}

func TestFailedPublishWaitsOutBackoff(t *testing.T) {
	store := memory.NewStore()
	box := store.Outbox()
	addEvent(t, box, "evt-1", "booking.failed")
	producer := &fakeProducer{publishFn: func(int) error { return errors.New("broker down") }}
	w := &outbox.Worker{Source: box, Producer: producer, Backoff: []time.Duration{time.Hour}}

	require.NoError(t, w.Drain(context.Background()))
	require.NoError(t, w.Drain(context.Background()))
	calls, _ := producer.snapshot()
	require.Equal(t, 1, calls)
}

func TestRunDrainsOnWakeAndStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	box := store.Outbox()
	producer := &fakeProducer{}
	w := &outbox.Worker{Source: box, Producer: producer, Interval: time.Hour, Wake: store.Wake()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	addEvent(t, box, "evt-1", "booking.requested")
	require.NoError(t, box.Flush(ctx))
	require.Eventually(t, func() bool {
		calls, _ := producer.snapshot()
		return calls == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunRequiresSourceAndProducer(t *testing.T) {
	w := &outbox.Worker{}
	require.ErrorIs(t, w.Run(context.Background()), outbox.ErrWorkerNotConfigured)
}
