package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListenDeliversInPublishOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)

	var mu sync.Mutex
	var got []string
	Listen(bus, AssetDetected, func(_ context.Context, e AssetDetectedEvent) error {
		mu.Lock()
		got = append(got, e.Mint)
		mu.Unlock()
		return nil
	})

	for _, mint := range []string{"A", "B", "C", "D"} {
		require.NoError(t, bus.Publish(AssetDetectedEvent{BaseEvent: NewBase(AssetDetected), Mint: mint}))
	}
	// other types are not delivered to this listener
	require.NoError(t, bus.Publish(SwapDroppedEvent{BaseEvent: NewBase(SwapDropped)}))
	require.NoError(t, bus.Shutdown(context.Background()))

	assert.Equal(t, []string{"A", "B", "C", "D"}, got)
}

func TestListenStop(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	var mu sync.Mutex
	calls := map[string]int{}
	record := func(name string) func(context.Context, SwapCompletedEvent) error {
		return func(context.Context, SwapCompletedEvent) error {
			mu.Lock()
			calls[name]++
			mu.Unlock()
			return nil
		}
	}
	stopFirst := Listen(bus, SwapCompleted, record("first"))
	Listen(bus, SwapCompleted, record("second"))

	stopFirst()
	stopFirst()
	require.NoError(t, bus.Publish(SwapCompletedEvent{BaseEvent: NewBase(SwapCompleted)}))
	require.NoError(t, bus.Shutdown(context.Background()))

	assert.Equal(t, map[string]int{"second": 1}, calls)
}

func TestPublishQueueFull(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	Listen(bus, SwapFailed, func(context.Context, SwapFailedEvent) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	ev := SwapFailedEvent{BaseEvent: NewBase(SwapFailed)}
	require.NoError(t, bus.Publish(ev))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("listener was not called")
	}
	// worker is busy: one event fits the queue, the next is dropped
	require.NoError(t, bus.Publish(ev))
	assert.ErrorIs(t, bus.Publish(ev), ErrQueueFull)
	assert.Equal(t, uint64(1), bus.dropped.Load())

	close(release)
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4)
	require.NoError(t, bus.Shutdown(context.Background()))
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(AssetDetectedEvent{BaseEvent: NewBase(AssetDetected)})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestShutdownTimeout(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4)
	release := make(chan struct{})
	Listen(bus, SwapDropped, func(context.Context, SwapDroppedEvent) error {
		<-release
		return nil
	})
	require.NoError(t, bus.Publish(SwapDroppedEvent{BaseEvent: NewBase(SwapDropped)}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestListenerFailuresDoNotStopDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	var mu sync.Mutex
	var delivered []string
	Listen(bus, SwapCompleted, func(_ context.Context, e SwapCompletedEvent) error {
		if e.Signature == "panic" {
			panic("listener bug")
		}
		return errors.New("store unavailable")
	})
	Listen(bus, SwapCompleted, func(_ context.Context, e SwapCompletedEvent) error {
		mu.Lock()
		delivered = append(delivered, e.Signature)
		mu.Unlock()
		return nil
	})

	for _, sig := range []string{"panic", "ok"} {
		require.NoError(t, bus.Publish(SwapCompletedEvent{BaseEvent: NewBase(SwapCompleted), Signature: sig}))
	}
	require.NotPanics(t, func() { require.NoError(t, bus.Shutdown(context.Background())) })

	assert.Equal(t, []string{"panic", "ok"}, delivered)
}

func TestListenTypeMismatch(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	called := false
	Listen(bus, SwapFailed, func(context.Context, SwapFailedEvent) error {
		called = true
		return nil
	})

	bus.mu.RLock()
	l := bus.listeners[SwapFailed][0]
	bus.mu.RUnlock()
	err := l.fn(context.Background(), SwapDroppedEvent{BaseEvent: NewBase(SwapDropped)})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestNilBus(t *testing.T) {
	var bus *Bus
	assert.NoError(t, bus.Publish(SwapDroppedEvent{BaseEvent: NewBase(SwapDropped)}))
}
