// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovshanmuradov/snipe-engine/internal/access"
	"github.com/rovshanmuradov/snipe-engine/internal/blockchain/solbc"
	"github.com/rovshanmuradov/snipe-engine/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/snipe-engine/internal/config"
	"github.com/rovshanmuradov/snipe-engine/internal/dex/jupiter"
	"github.com/rovshanmuradov/snipe-engine/internal/dex/raydium"
	"github.com/rovshanmuradov/snipe-engine/internal/events"
	"github.com/rovshanmuradov/snipe-engine/internal/license"
	"github.com/rovshanmuradov/snipe-engine/internal/metrics"
	"github.com/rovshanmuradov/snipe-engine/internal/snipe"
	"github.com/rovshanmuradov/snipe-engine/internal/storage/postgres"
	"github.com/rovshanmuradov/snipe-engine/internal/swap"
	"github.com/rovshanmuradov/snipe-engine/internal/wallet"
)

const (
	eventBufferSize = 256
	shutdownTimeout = 30 * time.Second
)

// Runner wires the engine together and runs the background loops until a signal arrives.
type Runner struct {
	config     *config.Config
	logger     *zap.Logger
	shutdown   *ShutdownHandler
	shutdownCh chan os.Signal

	db            *gorm.DB
	bus           *events.Bus
	promRegistry  *prometheus.Registry
	metrics       *metrics.Collector
	custody       *wallet.Custody
	access        *access.Checker
	orchestrator  *swap.Orchestrator
	subscriptions *snipe.Registry
	supervisor    *snipe.Supervisor
}

func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		config:     cfg,
		logger:     logger,
		shutdown:   NewShutdownHandler(logger, shutdownTimeout),
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Initialize validates the license and builds every component. Nothing runs until Run.
func (r *Runner) Initialize(ctx context.Context) error {
	cfg := r.config

	validator := license.NewKeygenValidator(license.Config{
		Key:          cfg.License,
		AccountID:    cfg.KeygenAccountID,
		ProductID:    cfg.KeygenProductID,
		ProductToken: cfg.KeygenProductToken,
	}, r.logger)
	if err := validator.Check(ctx); err != nil {
		return fmt.Errorf("license validation failed: %w", err)
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL, r.logger)
		if err != nil {
			return err
		}
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		r.db = db
		r.shutdown.AddFunc("database", func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	} else {
		r.logger.Warn("database_url not set: wallets and packages are kept in memory, swap history is disabled")
	}

	r.promRegistry = prometheus.NewRegistry()
	r.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.metrics = metrics.NewCollector(r.promRegistry)

	r.bus = events.NewBus(r.logger, eventBufferSize)
	if r.db != nil {
		recorder := NewHistoryRecorder(postgres.NewStorage(r.db, r.logger), r.logger)
		recorder.Attach(r.bus)
		r.shutdown.Add("swap-history", recorder)
	}
	bus := r.bus
	r.shutdown.AddFunc("event-bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return bus.Shutdown(ctx)
	})

	if err := r.buildEngine(); err != nil {
		return err
	}
	r.buildLoops()

	r.logger.Info("Engine initialized",
		zap.String("subscription_store", cfg.SubscriptionStore),
		zap.Bool("persistent_wallets", r.db != nil))
	return nil
}

func (r *Runner) buildEngine() error {
	cfg := r.config

	cipher, err := wallet.NewCipher(cfg.WalletSecret)
	if err != nil {
		return fmt.Errorf("wallet secret: %w", err)
	}
	var walletStore wallet.Store = wallet.NewMemoryStore()
	var packageStore access.PackageStore = access.NewMemoryStore()
	if r.db != nil {
		walletStore = wallet.NewGormStore(r.db)
		packageStore = access.NewGormStore(r.db)
	}
	r.custody = wallet.NewCustody(walletStore, cipher, r.logger)
	r.access = access.NewChecker(packageStore, r.logger)

	fees, err := swap.NewFeeCalculator(cfg.Swap.FeeBps, cfg.Swap.FeeWallet)
	if err != nil {
		return err
	}

	ledger := solbc.NewClient(cfg.RPCURL, r.logger, solbc.Options{
		RPS:         cfg.Limits.RPCRPS,
		CallTimeout: cfg.Limits.CallTimeout(),
	})
	router := jupiter.NewClient(jupiter.Config{
		QuoteURL: cfg.QuoteURL,
		SwapURL:  cfg.SwapURL,
		RPS:      cfg.Limits.RouterRPS,
		Timeout:  cfg.Limits.CallTimeout(),
	}, r.logger)

	submit := transaction.DefaultConfig()
	submit.Attempts = uint(cfg.Swap.SubmitAttempts)

	r.orchestrator, err = swap.NewOrchestrator(swap.Deps{
		Ledger:  ledger,
		Router:  router,
		Wallets: r.custody,
		Access:  r.access,
		Fees:    fees,
		Bus:     r.bus,
		Metrics: r.metrics,
	}, swap.Config{
		SlippageBps:      cfg.Swap.SlippageBps,
		MaxAccounts:      cfg.Swap.MaxAccounts,
		DirectRoutesOnly: cfg.Swap.DirectRoutesOnly,
		ReserveSOL:       cfg.Swap.ReserveSOL,
		Deadline:         cfg.Swap.Deadline(),
		Ensurer: swap.EnsurerConfig{
			SettleDelay:  cfg.Swap.SettleDelay(),
			ComputeUnits: cfg.Swap.ATAComputeUnits,
			PriorityFee:  cfg.Swap.ATAPriorityFee,
		},
		Submit: submit,
	}, r.logger)
	return err
}

func (r *Runner) buildLoops() {
	cfg := r.config

	var store snipe.Store = snipe.NewMemoryStore()
	if cfg.SubscriptionStore == config.StorePostgres && r.db != nil {
		store = snipe.NewGormStore(r.db)
	}
	r.subscriptions = snipe.NewRegistry(store, r.bus, r.logger)

	feed := raydium.NewPairsService(raydium.PairsConfig{
		URL:     cfg.PairsURL,
		Timeout: cfg.Limits.CallTimeout(),
	}, r.logger)

	manual := snipe.NewManualLoop(r.subscriptions, r.orchestrator, cfg.Snipe.ManualInterval(), r.metrics, r.logger)
	poller := snipe.NewListingPoller(feed, r.subscriptions, r.orchestrator, snipe.NewKnownAssetSet(), snipe.PollerConfig{
		Interval:    cfg.Snipe.ListingInterval(),
		SeedOnStart: cfg.Snipe.SeedKnownAssets,
	}, r.bus, r.metrics, r.logger)

	r.supervisor = snipe.NewSupervisor(snipe.DefaultSupervisorConfig(), r.metrics, r.logger, manual, poller)
}

// Run starts the metrics endpoint and the supervised loops, then blocks until
// ctx is cancelled or SIGINT/SIGTERM arrives, and shuts everything down.
func (r *Runner) Run(ctx context.Context) error {
	if r.supervisor == nil {
		return errors.New("runner is not initialized")
	}

	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(r.shutdownCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("Signal received: " + sig.String())
			cancel()
		case <-runCtx.Done():
		}
	}()

	r.startMetricsServer()

	r.logger.Info("Starting snipe loops")
	err := r.supervisor.Run(runCtx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if shutdownErr := r.shutdown.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

func (r *Runner) startMetricsServer() {
	if r.config.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	server := &http.Server{
		Addr:              r.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		r.logger.Info("Metrics endpoint listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	r.shutdown.AddFunc("metrics-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	})
}

// Orchestrator executes direct swap commands.
func (r *Runner) Orchestrator() *swap.Orchestrator { return r.orchestrator }

// Subscriptions manages manual and auto snipe subscriptions.
func (r *Runner) Subscriptions() *snipe.Registry { return r.subscriptions }

// Wallets creates, imports and loads user wallets.
func (r *Runner) Wallets() *wallet.Custody { return r.custody }

func (r *Runner) Access() *access.Checker { return r.access }

// Events exposes outcomes for notifiers.
func (r *Runner) Events() *events.Bus { return r.bus }
