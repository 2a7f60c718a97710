// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
	ErrQueueFull = errors.New("event queue is full")
)

// listenerTimeout bounds one listener call; history writes are the slowest listener.
const listenerTimeout = 5 * time.Second

type listener struct {
	id uint64
	fn func(context.Context, Event) error
}

// Bus carries swap and snipe outcomes from the engine to its listeners.
// Events are delivered by a single worker in publish order. Publish never blocks
// the swap path: with a full queue the event is dropped and counted.
// Publish on a nil *Bus is a no-op, so components may run without one.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventType][]listener
	nextID    uint64
	closed    bool

	queue   chan Event
	done    chan struct{}
	dropped atomic.Uint64
	logger  *zap.Logger
}

func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		listeners: make(map[EventType][]listener),
		queue:     make(chan Event, bufferSize),
		done:      make(chan struct{}),
		logger:    logger.Named("event-bus"),
	}
	go b.run()
	return b
}

func (b *Bus) subscribe(eventType EventType, fn func(context.Context, Event) error) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[eventType] = append(b.listeners[eventType], listener{id: id, fn: fn})
	return func() { b.unsubscribe(eventType, id) }
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// copy on write: the worker may be iterating the old slice
	current := b.listeners[eventType]
	kept := make([]listener, 0, len(current))
	for _, l := range current {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(b.listeners, eventType)
		return
	}
	b.listeners[eventType] = kept
}

// Publish queues the event. It returns ErrBusClosed after Shutdown and
// ErrQueueFull when the event had to be dropped.
func (b *Bus) Publish(event Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.queue <- event:
		return nil
	default:
		n := b.dropped.Add(1)
		b.logger.Warn("Event queue full, dropping event",
			zap.String("event_type", string(event.Type())),
			zap.Uint64("dropped_total", n))
		return ErrQueueFull
	}
}

func (b *Bus) run() {
	defer close(b.done)
	for event := range b.queue {
		b.deliver(event)
	}
}

func (b *Bus) deliver(event Event) {
	b.mu.RLock()
	ls := b.listeners[event.Type()]
	b.mu.RUnlock()
	for _, l := range ls {
		b.call(l, event)
	}
}

func (b *Bus) call(l listener, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event listener panicked",
				zap.String("event_type", string(event.Type())),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	if err := l.fn(ctx, event); err != nil {
		b.logger.Error("Event listener failed",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}

// Shutdown stops intake and waits until every queued event has been delivered.
// It is safe to call more than once.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		b.logger.Info("Event bus stopped", zap.Uint64("dropped_events", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending_events", len(b.queue)))
		return ctx.Err()
	}
}
