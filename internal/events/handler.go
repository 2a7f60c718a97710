// internal/events/handler.go
package events

import (
	"context"
	"fmt"
)

// Listen registers fn for events of eventType, typed by their concrete struct.
// Listeners run on the bus worker one at a time: a slow listener delays later
// events but never a publisher. The returned func removes the listener.
func Listen[E Event](b *Bus, eventType EventType, fn func(context.Context, E) error) (stop func()) {
	return b.subscribe(eventType, func(ctx context.Context, event Event) error {
		e, ok := event.(E)
		if !ok {
			return fmt.Errorf("event %s has unexpected type %T", eventType, event)
		}
		return fn(ctx, e)
	})
}
