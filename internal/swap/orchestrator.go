// internal/swap/orchestrator.go
package swap

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/snipe-engine/internal/dex/jupiter"
	"github.com/rovshanmuradov/snipe-engine/internal/events"
	"github.com/rovshanmuradov/snipe-engine/internal/logger"
	"github.com/rovshanmuradov/snipe-engine/internal/metrics"
	"github.com/rovshanmuradov/snipe-engine/internal/wallet"
)

// Ledger is everything the orchestrator needs from the chain.
type Ledger interface {
	BalanceReader
	AccountLedger
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error
	GetLookupTables(ctx context.Context, keys []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error)
}

// Router is the quote & route collaborator.
type Router interface {
	GetQuote(ctx context.Context, p jupiter.QuoteParams) (*jupiter.Quote, error)
	BuildSwap(ctx context.Context, quote *jupiter.Quote, payer solana.PublicKey) (*jupiter.SwapTransaction, error)
}

type WalletLoader interface {
	LoadWallet(ctx context.Context, userID int64) (*wallet.Wallet, error)
}

type AccessChecker interface {
	CheckAccess(ctx context.Context, service string, userID int64) (bool, error)
}

type Config struct {
	SlippageBps      int
	MaxAccounts      int
	DirectRoutesOnly bool
	ReserveSOL       float64
	// Deadline bounds a whole accepted swap, and with it how long the user's slot is held.
	Deadline time.Duration
	Ensurer  EnsurerConfig
	Submit   transaction.Config
}

type Deps struct {
	Ledger  Ledger
	Router  Router
	Wallets WalletLoader
	Access  AccessChecker
	Fees    *FeeCalculator
	Bus     *events.Bus
	Metrics *metrics.Collector
}

// Orchestrator executes swaps with at most one in flight per user.
type Orchestrator struct {
	guard     *Guard
	deps      Deps
	config    Config
	reserve   uint64
	ensurer   *Ensurer
	assembler *transaction.Assembler
	submitter *transaction.Submitter
	logger    *zap.Logger
}

func NewOrchestrator(deps Deps, config Config, log *zap.Logger) (*Orchestrator, error) {
	if deps.Ledger == nil || deps.Router == nil || deps.Wallets == nil || deps.Access == nil {
		return nil, errors.New("orchestrator: ledger, router, wallets and access are required")
	}
	if config.Deadline <= 0 {
		config.Deadline = 90 * time.Second
	}
	var reserve uint64
	if config.ReserveSOL > 0 {
		r, err := ToBaseUnits(config.ReserveSOL, nativeDecimals)
		if err != nil {
			return nil, err
		}
		reserve = r
	}
	return &Orchestrator{
		guard:     NewGuard(),
		deps:      deps,
		config:    config,
		reserve:   reserve,
		ensurer:   NewEnsurer(deps.Ledger, config.Ensurer, log),
		assembler: transaction.NewAssembler(deps.Ledger, log),
		submitter: transaction.NewSubmitter(deps.Ledger, config.Submit, log),
		logger:    log.Named("swap"),
	}, nil
}

// ExecuteSwap runs one swap. A concurrent request for the same user returns
// ErrDuplicateRequest immediately without touching any collaborator.
func (o *Orchestrator) ExecuteSwap(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := logger.WithUser(logger.WithOperation(o.logger, "execute_swap"), req.UserID).With(
		zap.String("source", string(req.Source)),
		zap.String("input_mint", req.InputMint.String()),
		zap.String("output_mint", req.OutputMint.String()),
		zap.Float64("amount", req.Amount))

	info := events.SwapInfo{
		UserID:     req.UserID,
		Source:     string(req.Source),
		InputMint:  req.InputMint.String(),
		OutputMint: req.OutputMint.String(),
		Amount:     req.Amount,
	}

	if !o.guard.TryAcquire(req.UserID) {
		log.Warn("duplicate swap request ignored")
		o.deps.Metrics.RecordSwap(string(req.Source), metrics.OutcomeDuplicate, 0)
		_ = o.deps.Bus.Publish(events.SwapDroppedEvent{BaseEvent: events.NewBase(events.SwapDropped), SwapInfo: info})
		return nil, fail(ErrDuplicateRequest, nil, "a swap is already in progress for this user")
	}
	defer o.guard.Release(req.UserID)

	ctx, cancel := context.WithTimeout(ctx, o.config.Deadline)
	defer cancel()

	log.Info("Swap started")
	res, w, err := o.execute(ctx, req, log)
	elapsed := time.Since(start)
	if w != nil {
		info.Wallet = w.PublicKey.String()
	}

	if err != nil {
		log.Error("Swap failed",
			zap.String("kind", Kind(err)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		o.deps.Metrics.RecordSwap(string(req.Source), metrics.OutcomeFailed, elapsed)
		_ = o.deps.Bus.Publish(events.SwapFailedEvent{
			BaseEvent: events.NewBase(events.SwapFailed),
			SwapInfo:  info,
			Kind:      Kind(err),
			Reason:    Reason(err),
			Duration:  elapsed,
		})
		return nil, err
	}

	res.Duration = elapsed
	log.Info("Swap confirmed",
		zap.String("signature", res.Signature.String()),
		zap.Uint64("amount_in", res.AmountIn),
		zap.String("quoted_out", res.OutAmount),
		zap.Uint64("fee", res.FeeAmount),
		zap.Duration("elapsed", elapsed))
	o.deps.Metrics.RecordSwap(string(req.Source), metrics.OutcomeConfirmed, elapsed)
	_ = o.deps.Bus.Publish(events.SwapCompletedEvent{
		BaseEvent:   events.NewBase(events.SwapCompleted),
		SwapInfo:    info,
		AmountIn:    res.AmountIn,
		FeeAmount:   res.FeeAmount,
		Signature:   res.Signature.String(),
		ExplorerURL: res.ExplorerURL,
		Duration:    elapsed,
	})
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, req Request, log *zap.Logger) (*Result, *wallet.Wallet, error) {
	service := req.Source.Service()
	allowed, err := o.deps.Access.CheckAccess(ctx, service, req.UserID)
	if err != nil {
		return nil, nil, fail(ErrAccessDenied, err, "could not verify your package, try again later")
	}
	if !allowed {
		return nil, nil, fail(ErrAccessDenied, nil, "your package does not include "+service)
	}

	w, err := o.deps.Wallets.LoadWallet(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return nil, nil, fail(ErrWalletNotFound, err, "no wallet found, create or import one first")
		}
		return nil, nil, fail(ErrWalletNotFound, err, "your wallet could not be loaded")
	}

	if req.InputMint.Equals(req.OutputMint) {
		return nil, w, fail(ErrUnsupportedAsset, nil, "input and output assets are the same")
	}
	inDecimals, err := o.deps.Ledger.GetMintDecimals(ctx, req.InputMint)
	if err != nil {
		return nil, w, fail(ErrUnsupportedAsset, err, "unsupported asset "+req.InputMint.String())
	}
	outDecimals, err := o.deps.Ledger.GetMintDecimals(ctx, req.OutputMint)
	if err != nil {
		return nil, w, fail(ErrUnsupportedAsset, err, "unsupported asset "+req.OutputMint.String())
	}

	amountIn, err := ToBaseUnits(req.Amount, inDecimals)
	if err != nil {
		return nil, w, fail(ErrInvalidAmount, err, err.Error())
	}
	fee := o.deps.Fees.Fee(amountIn)
	fields := []zap.Field{
		zap.String("wallet", w.PublicKey.String()),
		zap.Uint8("input_decimals", inDecimals),
		zap.Uint8("output_decimals", outDecimals),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("fee", fee),
	}
	if fee > 0 {
		fields = append(fields, zap.String("fee_recipient", o.deps.Fees.Recipient().String()))
	}
	log.Debug("Amount resolved", fields...)

	if err := checkBalance(ctx, o.deps.Ledger, w.PublicKey, req.InputMint, amountIn, inDecimals, o.reserve); err != nil {
		return nil, w, err
	}

	var created bool
	if !req.OutputMint.Equals(solana.SolMint) {
		created, err = o.ensurer.EnsureExists(ctx, w, req.OutputMint)
		if err != nil {
			return nil, w, err
		}
	}

	quote, err := o.deps.Router.GetQuote(ctx, jupiter.QuoteParams{
		InputMint:        req.InputMint,
		OutputMint:       req.OutputMint,
		Amount:           amountIn,
		SlippageBps:      o.config.SlippageBps,
		MaxAccounts:      o.config.MaxAccounts,
		OnlyDirectRoutes: o.config.DirectRoutesOnly,
	})
	if err != nil {
		return nil, w, fail(ErrQuoteUnavailable, err, "no quote available for this pair right now")
	}

	built, err := o.deps.Router.BuildSwap(ctx, quote, w.PublicKey)
	if err != nil {
		return nil, w, fail(ErrRouteBuildFailed, err, "the router could not build a swap transaction")
	}
	log.Debug("Swap transaction built",
		zap.Int("lookup_tables", len(built.LookupTables)),
		zap.Uint64("last_valid_block_height", built.LastValidBlockHeight))

	tx, err := o.assembler.Assemble(ctx, built.Transaction, built.LookupTables, w.PrivateKey)
	if err != nil {
		return nil, w, fail(ErrRouteBuildFailed, err, "the routed transaction could not be prepared")
	}

	sig, err := o.submitter.SendAndConfirm(ctx, tx)
	if err != nil {
		return nil, w, fail(ErrSubmissionFailed, err, "the swap transaction was not confirmed")
	}

	return &Result{
		Signature:   sig,
		AmountIn:    amountIn,
		FeeAmount:   fee,
		OutAmount:   quote.OutAmount,
		CreatedATA:  created,
		ExplorerURL: ExplorerURL(sig),
	}, w, nil
}
