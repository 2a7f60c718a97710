package swap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/wallet"
)

func newTestEnsurer(ledger AccountLedger, settle time.Duration) *Ensurer {
	return NewEnsurer(ledger, EnsurerConfig{
		CheckAttempts:   3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		SettleDelay:     settle,
	}, zap.NewNop())
}

func ensurerFixture(t *testing.T) (*fakeLedger, *wallet.Wallet, solana.PublicKey, solana.PublicKey) {
	t.Helper()
	w, err := wallet.Generate()
	require.NoError(t, err)
	mint := solana.NewWallet().PublicKey()
	ata, err := w.GetATA(mint)
	require.NoError(t, err)
	ledger := newFakeLedger(1_000_000_000)
	ledger.pendingATA = ata
	return ledger, w, mint, ata
}

func TestEnsureExistsAlreadyThere(t *testing.T) {
	ledger, w, mint, ata := ensurerFixture(t)
	ledger.accounts[ata] = true

	created, err := newTestEnsurer(ledger, 0).EnsureExists(context.Background(), w, mint)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, ledger.sentCount())
}

func TestEnsureExistsCreates(t *testing.T) {
	ledger, w, mint, ata := ensurerFixture(t)
	ledger.createOnSend = true

	start := time.Now()
	created, err := newTestEnsurer(ledger, 20*time.Millisecond).EnsureExists(context.Background(), w, mint)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, ledger.accounts[ata])
	assert.Equal(t, 1, ledger.sentCount())
	assert.Equal(t, []rpc.CommitmentType{rpc.CommitmentFinalized}, ledger.confirmations)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "settle delay")
}

func TestEnsureExistsRetriesCheck(t *testing.T) {
	ledger, w, mint, ata := ensurerFixture(t)
	ledger.accounts[ata] = true
	ledger.existsErrs = []error{errors.New("node behind"), errors.New("node behind")}

	created, err := newTestEnsurer(ledger, 0).EnsureExists(context.Background(), w, mint)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int32(3), ledger.existsChecks)
}

func TestEnsureExistsCheckExhausted(t *testing.T) {
	ledger, w, mint, _ := ensurerFixture(t)
	boom := errors.New("node behind")
	ledger.existsErrs = []error{boom, boom, boom}

	_, err := newTestEnsurer(ledger, 0).EnsureExists(context.Background(), w, mint)
	assert.ErrorIs(t, err, ErrAccountCreationFailed)
	assert.Zero(t, ledger.sentCount())
}

func TestEnsureExistsCreationFails(t *testing.T) {
	ledger, w, mint, _ := ensurerFixture(t)
	ledger.sendErr = errors.New("insufficient funds for rent")

	_, err := newTestEnsurer(ledger, 0).EnsureExists(context.Background(), w, mint)
	assert.ErrorIs(t, err, ErrAccountCreationFailed)
	assert.Equal(t, 1, ledger.sentCount(), "creation is attempted once")
}

func TestEnsureExistsLandedDespiteTimeout(t *testing.T) {
	ledger, w, mint, _ := ensurerFixture(t)
	ledger.createOnSend = true
	ledger.confirmErr = errors.New("confirmation timeout")

	created, err := newTestEnsurer(ledger, 0).EnsureExists(context.Background(), w, mint)
	require.NoError(t, err)
	assert.False(t, created)
}

type capturingLedger struct {
	*fakeLedger
	tx *solana.Transaction
}

func (c *capturingLedger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.tx = tx
	return c.fakeLedger.SendTransaction(ctx, tx)
}

func TestEnsureExistsComputeBudget(t *testing.T) {
	ledger, w, mint, _ := ensurerFixture(t)
	ledger.createOnSend = true
	capture := &capturingLedger{fakeLedger: ledger}

	e := NewEnsurer(capture, EnsurerConfig{
		CheckAttempts: 1,
		ComputeUnits:  40_000,
		PriorityFee:   10_000,
	}, zap.NewNop())

	created, err := e.EnsureExists(context.Background(), w, mint)
	require.NoError(t, err)
	assert.True(t, created)

	require.NotNil(t, capture.tx)
	require.Len(t, capture.tx.Message.Instructions, 3)
	keys := capture.tx.Message.AccountKeys
	for i, want := range []solana.PublicKey{computebudget.ProgramID, computebudget.ProgramID, solana.SPLAssociatedTokenAccountProgramID} {
		assert.Equal(t, want, keys[capture.tx.Message.Instructions[i].ProgramIDIndex], "instruction %d", i)
	}
}
