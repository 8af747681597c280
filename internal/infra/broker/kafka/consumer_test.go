package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

func (f handlerFunc) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error { return f(ctx, msg) }

func TestDeliverRetriesUntilHandled(t *testing.T) {
	calls := 0
	h := claimHandler{
		backoff: []time.Duration{time.Millisecond},
		handler: handlerFunc(func(context.Context, *sarama.ConsumerMessage) error {
			calls++
			if calls < 3 {
				return errors.New("store unavailable")
			}
			return nil
		}),
	}
	require.True(t, h.deliver(context.Background(), &sarama.ConsumerMessage{Topic: "t"}))
	require.Equal(t, 3, calls)
}

func TestDeliverStopsWhenSessionEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := claimHandler{
		backoff: []time.Duration{time.Hour},
		handler: handlerFunc(func(context.Context, *sarama.ConsumerMessage) error {
			cancel()
			return errors.New("store unavailable")
		}),
	}
	require.False(t, h.deliver(ctx, &sarama.ConsumerMessage{Topic: "t"}))
}

func TestWaitRepeatsLastBackoff(t *testing.T) {
	h := claimHandler{backoff: []time.Duration{time.Millisecond, time.Second}}
	require.Equal(t, time.Millisecond, h.wait(0))
	require.Equal(t, time.Second, h.wait(1))
	require.Equal(t, time.Second, h.wait(7))
	require.Equal(t, time.Second, claimHandler{}.wait(0))
}
