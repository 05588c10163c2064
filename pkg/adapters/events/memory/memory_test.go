package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/batchflow/pkg/domain"
)

func TestInMemoryEventBus_FanOut(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := map[string][]domain.EventType{}
	for _, name := range []string{"a", "b"} {
		name := name
		require.NoError(t, bus.Subscribe(ctx, domain.TopicJobEvents, func(_ context.Context, ev domain.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], ev.Type)
			return nil
		}))
	}

	require.NoError(t, bus.Publish(ctx, domain.TopicJobEvents, domain.Event{Type: domain.EventTypeJobStarted}))
	require.NoError(t, bus.Publish(ctx, domain.TopicJobEvents, domain.Event{Type: domain.EventTypeJobCompleted}))

	want := []domain.EventType{domain.EventTypeJobStarted, domain.EventTypeJobCompleted}
	assert.Equal(t, want, got["a"])
	assert.Equal(t, want, got["b"])
}

func TestInMemoryEventBus_UnsubscribesOnCancel(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, bus.Subscribe(ctx, "t", func(context.Context, domain.Event) error { return nil }))
	require.NoError(t, bus.Subscribe(context.Background(), "t", func(context.Context, domain.Event) error { return nil }))
	assert.Equal(t, 2, bus.Subscribers("t"))

	cancel()
	assert.Eventually(t, func() bool { return bus.Subscribers("t") == 1 }, time.Second, 5*time.Millisecond)
}
