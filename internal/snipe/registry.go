// internal/snipe/registry.go
package snipe

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/events"
)

var ErrInvalidSubscription = errors.New("invalid subscription")

// Registry is the subscription API used by commands and read by the loops.
type Registry struct {
	store  Store
	bus    *events.Bus
	logger *zap.Logger
}

func NewRegistry(store Store, bus *events.Bus, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		bus:    bus,
		logger: logger.Named("snipe-registry"),
	}
}

func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %v", ErrInvalidSubscription, amount)
	}
	return nil
}

// SubscribeManual replaces any previous manual subscription of the user.
func (r *Registry) SubscribeManual(ctx context.Context, userID int64, mint solana.PublicKey, amount float64) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if mint.IsZero() || mint.Equals(solana.SolMint) {
		return fmt.Errorf("%w: target must be a token mint", ErrInvalidSubscription)
	}
	if err := r.store.PutManual(ctx, ManualSubscription{UserID: userID, Mint: mint, Amount: amount}); err != nil {
		return err
	}
	r.logger.Info("Manual snipe subscribed",
		zap.Int64("user_id", userID),
		zap.String("mint", mint.String()),
		zap.Float64("amount", amount))
	r.publish(userID, "manual", mint.String(), amount, true)
	return nil
}

func (r *Registry) UnsubscribeManual(ctx context.Context, userID int64) (bool, error) {
	removed, err := r.store.DeleteManual(ctx, userID)
	if err != nil || !removed {
		return false, err
	}
	r.logger.Info("Manual snipe unsubscribed", zap.Int64("user_id", userID))
	r.publish(userID, "manual", "", 0, false)
	return true, nil
}

// SubscribeAuto replaces any previous auto subscription of the user.
func (r *Registry) SubscribeAuto(ctx context.Context, userID int64, amount float64) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := r.store.PutAuto(ctx, AutoSubscription{UserID: userID, Amount: amount}); err != nil {
		return err
	}
	r.logger.Info("Auto snipe subscribed", zap.Int64("user_id", userID), zap.Float64("amount", amount))
	r.publish(userID, "auto", "", amount, true)
	return nil
}

func (r *Registry) UnsubscribeAuto(ctx context.Context, userID int64) (bool, error) {
	removed, err := r.store.DeleteAuto(ctx, userID)
	if err != nil || !removed {
		return false, err
	}
	r.logger.Info("Auto snipe unsubscribed", zap.Int64("user_id", userID))
	r.publish(userID, "auto", "", 0, false)
	return true, nil
}

func (r *Registry) ManualSnapshot(ctx context.Context) ([]ManualSubscription, error) {
	return r.store.ListManual(ctx)
}

func (r *Registry) AutoSnapshot(ctx context.Context) ([]AutoSubscription, error) {
	return r.store.ListAuto(ctx)
}

func (r *Registry) publish(userID int64, kind, mint string, amount float64, active bool) {
	_ = r.bus.Publish(events.SubscriptionChangedEvent{
		BaseEvent: events.NewBase(events.SubscriptionChanged),
		UserID:    userID,
		Kind:      kind,
		Mint:      mint,
		Amount:    amount,
		Active:    active,
	})
}
