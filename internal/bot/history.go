// internal/bot/history.go
package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/events"
	"github.com/rovshanmuradov/snipe-engine/internal/storage"
	"github.com/rovshanmuradov/snipe-engine/internal/storage/models"
)

// HistoryRecorder stores every finished swap reported on the bus.
type HistoryRecorder struct {
	store  storage.Storage
	logger *zap.Logger
	stops  []func()
}

func NewHistoryRecorder(store storage.Storage, logger *zap.Logger) *HistoryRecorder {
	return &HistoryRecorder{
		store:  store,
		logger: logger.Named("swap-history"),
	}
}

// Attach subscribes the recorder to swap outcomes.
func (h *HistoryRecorder) Attach(bus *events.Bus) {
	h.stops = append(h.stops,
		events.Listen(bus, events.SwapCompleted, h.recordCompleted),
		events.Listen(bus, events.SwapFailed, h.recordFailed),
	)
}

// Close detaches the recorder from the bus.
func (h *HistoryRecorder) Close() error {
	for _, stop := range h.stops {
		stop()
	}
	h.stops = nil
	return nil
}

func (h *HistoryRecorder) recordCompleted(ctx context.Context, e events.SwapCompletedEvent) error {
	rec := newSwapRecord(e.SwapInfo, models.SwapStatusConfirmed)
	rec.Signature = e.Signature
	rec.AmountIn = e.AmountIn
	rec.FeeAmount = e.FeeAmount
	rec.ExecutionTime = e.Duration.Seconds()
	return h.save(ctx, rec)
}

func (h *HistoryRecorder) recordFailed(ctx context.Context, e events.SwapFailedEvent) error {
	rec := newSwapRecord(e.SwapInfo, models.SwapStatusFailed)
	rec.ErrorMessage = e.Kind + ": " + e.Reason
	rec.ExecutionTime = e.Duration.Seconds()
	return h.save(ctx, rec)
}

func (h *HistoryRecorder) save(ctx context.Context, rec *models.Swap) error {
	if err := h.store.SaveSwap(ctx, rec); err != nil {
		h.logger.Error("Failed to record swap", zap.Int64("user_id", rec.UserID), zap.Error(err))
		return err
	}
	return nil
}

func newSwapRecord(info events.SwapInfo, status string) *models.Swap {
	return &models.Swap{
		UserID:        info.UserID,
		Source:        info.Source,
		WalletAddress: info.Wallet,
		InputMint:     info.InputMint,
		OutputMint:    info.OutputMint,
		Amount:        info.Amount,
		Status:        status,
	}
}
