// internal/snipe/manual_loop.go
package snipe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/metrics"
	"github.com/rovshanmuradov/snipe-engine/internal/swap"
)

const ManualLoopName = "manual_snipe"

// Swapper is the orchestrator as seen by the loops.
type Swapper interface {
	ExecuteSwap(ctx context.Context, req swap.Request) (*swap.Result, error)
}

// ManualLoop buys every manual subscription's target once per tick.
type ManualLoop struct {
	registry *Registry
	swapper  Swapper
	interval time.Duration
	metrics  *metrics.Collector
	logger   *zap.Logger

	passMu sync.Mutex
}

func NewManualLoop(registry *Registry, swapper Swapper, interval time.Duration, m *metrics.Collector, logger *zap.Logger) *ManualLoop {
	if interval <= 0 {
		interval = time.Second
	}
	return &ManualLoop{
		registry: registry,
		swapper:  swapper,
		interval: interval,
		metrics:  m,
		logger:   logger.Named("manual-snipe"),
	}
}

func (l *ManualLoop) Name() string { return ManualLoopName }

// Run ticks until ctx is cancelled. A failed tick is logged and the next one runs as usual.
func (l *ManualLoop) Run(ctx context.Context) error {
	l.logger.Info("Manual snipe loop started", zap.Duration("interval", l.interval))
	defer l.logger.Info("Manual snipe loop stopped")

	return runTicker(ctx, l.interval, func(ctx context.Context) {
		if _, err := l.RunOnce(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("Manual snipe tick failed", zap.Error(err))
		}
	})
}

// RunOnce dispatches one pass over a snapshot of the subscriptions and returns
// how many swaps it issued. A pass that starts while another is still running is skipped.
func (l *ManualLoop) RunOnce(ctx context.Context) (int, error) {
	if !l.passMu.TryLock() {
		l.logger.Debug("Previous pass still running, skipping tick")
		return 0, nil
	}
	defer l.passMu.Unlock()

	subs, err := l.registry.ManualSnapshot(ctx)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			return dispatched, ctx.Err()
		}
		l.metrics.RecordDispatch(ManualLoopName)
		dispatched++
		_, err := l.swapper.ExecuteSwap(ctx, swap.Request{
			UserID:     sub.UserID,
			InputMint:  solana.SolMint,
			OutputMint: sub.Mint,
			Amount:     sub.Amount,
			Source:     swap.SourceSnipeLoop,
		})
		logDispatch(l.logger, sub.UserID, sub.Mint.String(), err)
	}
	return dispatched, nil
}

func logDispatch(log *zap.Logger, userID int64, mint string, err error) {
	switch {
	case err == nil:
		log.Info("Snipe executed", zap.Int64("user_id", userID), zap.String("mint", mint))
	case errors.Is(err, swap.ErrDuplicateRequest):
		log.Warn("Snipe dropped, user busy", zap.Int64("user_id", userID), zap.String("mint", mint))
	default:
		log.Warn("Snipe failed",
			zap.Int64("user_id", userID),
			zap.String("mint", mint),
			zap.String("kind", swap.Kind(err)),
			zap.String("reason", swap.Reason(err)))
	}
}

// runTicker calls tick immediately and then every interval until ctx is done.
func runTicker(ctx context.Context, interval time.Duration, tick func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tick(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
