// internal/swap/ensurer.go
package swap

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/wallet"
)

// AccountLedger is the part of the ledger the account ensurer needs.
type AccountLedger interface {
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error
}

type EnsurerConfig struct {
	CheckAttempts   uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	SettleDelay     time.Duration
	// Optional compute budget for the creation transaction; zero leaves the cluster defaults.
	ComputeUnits uint32
	PriorityFee  uint64 // micro-lamports per compute unit
}

// Ensurer makes sure an owner's associated token account exists before it receives tokens.
// The existence check is retried on transient errors; creation is attempted once.
type Ensurer struct {
	ledger AccountLedger
	config EnsurerConfig
	logger *zap.Logger
}

func NewEnsurer(ledger AccountLedger, config EnsurerConfig, logger *zap.Logger) *Ensurer {
	if config.CheckAttempts == 0 {
		config.CheckAttempts = 3
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = time.Second
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = 5 * time.Second
	}
	return &Ensurer{
		ledger: ledger,
		config: config,
		logger: logger.Named("ata-ensurer"),
	}
}

// EnsureExists reports whether it had to create the account.
func (e *Ensurer) EnsureExists(ctx context.Context, owner *wallet.Wallet, mint solana.PublicKey) (bool, error) {
	ata, err := owner.GetATA(mint)
	if err != nil {
		return false, fail(ErrAccountCreationFailed, err, "could not derive token account")
	}
	log := e.logger.With(zap.String("ata", ata.String()), zap.String("mint", mint.String()))

	exists, err := e.exists(ctx, ata)
	if err != nil {
		return false, fail(ErrAccountCreationFailed, err, "could not check token account")
	}
	if exists {
		return false, nil
	}

	log.Info("Creating associated token account")
	if err := e.create(ctx, owner, mint); err != nil {
		// the account may have landed anyway, e.g. confirmation timed out
		if ok, checkErr := e.ledger.AccountExists(ctx, ata); checkErr == nil && ok {
			log.Warn("Token account exists despite creation error", zap.Error(err))
			return false, nil
		}
		return false, fail(ErrAccountCreationFailed, err, "could not create token account for "+mint.String())
	}

	if err := sleepCtx(ctx, e.config.SettleDelay); err != nil {
		return true, fail(ErrAccountCreationFailed, err, "cancelled while waiting for token account")
	}
	log.Info("Associated token account created")
	return true, nil
}

func (e *Ensurer) exists(ctx context.Context, ata solana.PublicKey) (bool, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.config.InitialInterval
	policy.MaxInterval = e.config.MaxInterval

	op := func() (bool, error) {
		ok, err := e.ledger.AccountExists(ctx, ata)
		if err != nil && ctx.Err() != nil {
			return false, backoff.Permanent(ctx.Err())
		}
		return ok, err
	}
	notify := func(err error, next time.Duration) {
		e.logger.Warn("Retrying token account check", zap.Duration("next_in", next), zap.Error(err))
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(e.config.CheckAttempts),
		backoff.WithNotify(notify),
	)
}

func (e *Ensurer) create(ctx context.Context, owner *wallet.Wallet, mint solana.PublicKey) error {
	blockhash, err := e.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	ixs := e.budgetInstructions()
	ixs = append(ixs, owner.CreateAssociatedTokenAccountIdempotentInstruction(owner.PublicKey, owner.PublicKey, mint))
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(owner.PublicKey))
	if err != nil {
		return err
	}
	if err := owner.SignTransaction(tx); err != nil {
		return err
	}
	sig, err := e.ledger.SendTransaction(ctx, tx)
	if err != nil {
		return err
	}
	return e.ledger.WaitForConfirmation(ctx, sig, rpc.CommitmentFinalized)
}

func (e *Ensurer) budgetInstructions() []solana.Instruction {
	var ixs []solana.Instruction
	if e.config.ComputeUnits > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitLimitInstruction(e.config.ComputeUnits).Build())
	}
	if e.config.PriorityFee > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstruction(e.config.PriorityFee).Build())
	}
	return ixs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
