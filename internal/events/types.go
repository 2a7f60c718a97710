// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Swap events
	SwapCompleted EventType = "swap.completed"
	SwapFailed    EventType = "swap.failed"
	SwapDropped   EventType = "swap.dropped"

	// Snipe events
	AssetDetected       EventType = "snipe.asset_detected"
	SubscriptionChanged EventType = "snipe.subscription_changed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// SwapInfo describes the request behind a swap event.
type SwapInfo struct {
	UserID     int64
	Source     string
	Wallet     string
	InputMint  string
	OutputMint string
	Amount     float64
}

// SwapCompletedEvent is emitted when a swap is confirmed on chain.
type SwapCompletedEvent struct {
	BaseEvent
	SwapInfo
	AmountIn    uint64
	FeeAmount   uint64
	Signature   string
	ExplorerURL string
	Duration    time.Duration
}

// SwapFailedEvent is emitted when an accepted swap fails at any step.
type SwapFailedEvent struct {
	BaseEvent
	SwapInfo
	Kind     string
	Reason   string
	Duration time.Duration
}

// SwapDroppedEvent is emitted when a request is dropped because the user already has one in flight.
type SwapDroppedEvent struct {
	BaseEvent
	SwapInfo
}

// AssetDetectedEvent is emitted for every asset the listing poller sees for the first time.
type AssetDetectedEvent struct {
	BaseEvent
	Mint        string
	Subscribers int
}

// SubscriptionChangedEvent is emitted on subscribe/unsubscribe of either snipe kind.
type SubscriptionChangedEvent struct {
	BaseEvent
	UserID int64
	Kind   string // "manual" or "auto"
	Mint   string
	Amount float64
	Active bool
}
