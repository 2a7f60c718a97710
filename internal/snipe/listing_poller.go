// internal/snipe/listing_poller.go
package snipe

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/snipe-engine/internal/events"
	"github.com/rovshanmuradov/snipe-engine/internal/metrics"
	"github.com/rovshanmuradov/snipe-engine/internal/swap"
)

const ListingPollerName = "listing_poller"

// ListingFeed returns the mints currently tradable, in feed order.
type ListingFeed interface {
	FetchBaseMints(ctx context.Context) ([]string, error)
}

type PollerConfig struct {
	Interval time.Duration
	// SeedOnStart marks the first snapshot as known without dispatching it.
	SeedOnStart bool
	// Parallelism caps concurrent swaps for one new asset; subscribers are distinct users.
	Parallelism int
}

// ListingPoller diffs the listing feed against the known assets and
// buys each new asset once for every auto subscriber.
type ListingPoller struct {
	feed     ListingFeed
	registry *Registry
	swapper  Swapper
	known    *KnownAssetSet
	config   PollerConfig
	bus      *events.Bus
	metrics  *metrics.Collector
	logger   *zap.Logger

	seeded bool
}

func NewListingPoller(
	feed ListingFeed,
	registry *Registry,
	swapper Swapper,
	known *KnownAssetSet,
	config PollerConfig,
	bus *events.Bus,
	m *metrics.Collector,
	logger *zap.Logger,
) *ListingPoller {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 8
	}
	return &ListingPoller{
		feed:     feed,
		registry: registry,
		swapper:  swapper,
		known:    known,
		config:   config,
		bus:      bus,
		metrics:  m,
		logger:   logger.Named("listing-poller"),
		seeded:   !config.SeedOnStart,
	}
}

func (p *ListingPoller) Name() string { return ListingPollerName }

func (p *ListingPoller) Run(ctx context.Context) error {
	p.logger.Info("Listing poller started",
		zap.Duration("interval", p.config.Interval),
		zap.Bool("seed_on_start", p.config.SeedOnStart))
	defer p.logger.Info("Listing poller stopped")

	return runTicker(ctx, p.config.Interval, func(ctx context.Context) {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("Listing poll failed, skipping tick", zap.Error(err))
		}
	})
}

// RunOnce performs one poll and returns the assets observed for the first time.
// A feed or subscription read failure leaves the known set untouched.
func (p *ListingPoller) RunOnce(ctx context.Context) ([]string, error) {
	mints, err := p.feed.FetchBaseMints(ctx)
	if err != nil {
		p.metrics.RecordListingFetch(false)
		return nil, err
	}
	p.metrics.RecordListingFetch(true)

	if !p.seeded {
		p.seeded = true
		fresh := p.known.AddNew(mints)
		p.logger.Info("Known assets seeded", zap.Int("count", len(fresh)))
		return nil, nil
	}

	// subscribers are read before the set grows: a failed read must leave the
	// new assets unknown so the next tick dispatches them
	subs, err := p.registry.AutoSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read auto subscriptions: %w", err)
	}

	fresh := p.known.AddNew(mints)
	if len(fresh) == 0 {
		return nil, nil
	}
	p.metrics.AddNewAssets(len(fresh))
	p.logger.Info("New assets listed", zap.Int("count", len(fresh)), zap.Strings("mints", fresh))

	for _, asset := range fresh {
		_ = p.bus.Publish(events.AssetDetectedEvent{
			BaseEvent:   events.NewBase(events.AssetDetected),
			Mint:        asset,
			Subscribers: len(subs),
		})
		mint, err := solana.PublicKeyFromBase58(asset)
		if err != nil {
			p.logger.Warn("Skipping asset with invalid mint", zap.String("mint", asset), zap.Error(err))
			continue
		}
		if len(subs) == 0 {
			continue
		}
		p.dispatch(ctx, mint, subs)
	}
	return fresh, nil
}

func (p *ListingPoller) dispatch(ctx context.Context, mint solana.PublicKey, subs []AutoSubscription) {
	var g errgroup.Group
	g.SetLimit(p.config.Parallelism)
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		p.metrics.RecordDispatch(ListingPollerName)
		g.Go(func() error {
			p.dispatchOne(ctx, mint, sub)
			return nil
		})
	}
	_ = g.Wait()
}

// dispatchOne runs outside the supervised goroutine, so it recovers its own panics.
func (p *ListingPoller) dispatchOne(ctx context.Context, mint solana.PublicKey, sub AutoSubscription) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Auto-snipe dispatch panicked",
				zap.Int64("user_id", sub.UserID),
				zap.String("mint", mint.String()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	_, err := p.swapper.ExecuteSwap(ctx, swap.Request{
		UserID:     sub.UserID,
		InputMint:  solana.SolMint,
		OutputMint: mint,
		Amount:     sub.Amount,
		Source:     swap.SourceAutoSnipe,
	})
	logDispatch(p.logger, sub.UserID, mint.String(), err)
}
