// internal/blockchain/solbc/transaction/submitter.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/blockchain/solbc"
)

// Sender отправляет транзакции и ждёт их подтверждения.
type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error
}

type Config struct {
	Attempts        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Commitment      rpc.CommitmentType
}

func DefaultConfig() Config {
	return Config{
		Attempts:        3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Commitment:      rpc.CommitmentConfirmed,
	}
}

// Submitter sends a signed transaction with bounded exponential backoff and
// waits for it to land. Resending the same signed bytes is idempotent: the
// signature, and therefore the transaction, is unchanged between attempts.
type Submitter struct {
	sender Sender
	config Config
	logger *zap.Logger
}

func NewSubmitter(sender Sender, config Config, logger *zap.Logger) *Submitter {
	def := DefaultConfig()
	if config.Attempts == 0 {
		config.Attempts = def.Attempts
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = def.InitialInterval
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = def.MaxInterval
	}
	if config.Commitment == "" {
		config.Commitment = def.Commitment
	}
	return &Submitter{
		sender: sender,
		config: config,
		logger: logger.Named("tx-submitter"),
	}
}

// SendAndConfirm returns the confirmed signature or the last error once attempts run out.
func (s *Submitter) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	attempt := 0
	op := func() (solana.Signature, error) {
		attempt++
		sig, err := s.sender.SendTransaction(ctx, tx)
		if err != nil {
			if ctx.Err() != nil {
				return solana.Signature{}, backoff.Permanent(ctx.Err())
			}
			return solana.Signature{}, err
		}

		if err := s.sender.WaitForConfirmation(ctx, sig, s.config.Commitment); err != nil {
			if errors.Is(err, solbc.ErrTransactionFailed) || ctx.Err() != nil {
				return sig, backoff.Permanent(err)
			}
			return sig, err
		}
		return sig, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.InitialInterval
	policy.MaxInterval = s.config.MaxInterval

	notify := func(err error, next time.Duration) {
		s.logger.Warn("Retrying transaction send",
			zap.Int("attempt", attempt),
			zap.Duration("next_in", next),
			zap.Error(err))
	}

	sig, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.config.Attempts),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return sig, nil
}
