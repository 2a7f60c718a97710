package swap

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/snipe-engine/internal/dex/jupiter"
	"github.com/rovshanmuradov/snipe-engine/internal/wallet"
)

type fakeLedger struct {
	mu sync.Mutex

	lamports      uint64
	tokens        map[solana.PublicKey]uint64
	decimals      map[solana.PublicKey]uint8
	accounts      map[solana.PublicKey]bool
	createOnSend  bool // the first sent transaction creates the pending ATA
	pendingATA    solana.PublicKey
	balanceErr    error
	existsErrs    []error
	sendErr       error
	confirmErr    error
	sent          int32
	existsChecks  int32
	confirmations []rpc.CommitmentType
}

func newFakeLedger(lamports uint64) *fakeLedger {
	return &fakeLedger{
		lamports: lamports,
		tokens:   map[solana.PublicKey]uint64{},
		decimals: map[solana.PublicKey]uint8{solana.SolMint: nativeDecimals},
		accounts: map[solana.PublicKey]bool{},
	}
}

func (f *fakeLedger) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.lamports, nil
}

func (f *fakeLedger) GetTokenBalance(_ context.Context, _, mint solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[mint], nil
}

func (f *fakeLedger) GetMintDecimals(_ context.Context, mint solana.PublicKey) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decimals[mint]
	if !ok {
		return 0, errors.New("account not found")
	}
	return d, nil
}

func (f *fakeLedger) AccountExists(_ context.Context, account solana.PublicKey) (bool, error) {
	atomic.AddInt32(&f.existsChecks, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.existsErrs) > 0 {
		err := f.existsErrs[0]
		f.existsErrs = f.existsErrs[1:]
		if err != nil {
			return false, err
		}
	}
	return f.accounts[account], nil
}

func (f *fakeLedger) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{7}, nil
}

func (f *fakeLedger) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	atomic.AddInt32(&f.sent, 1)
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.mu.Lock()
	if f.createOnSend {
		f.accounts[f.pendingATA] = true
		f.createOnSend = false
	}
	f.mu.Unlock()
	return tx.Signatures[0], nil
}

func (f *fakeLedger) WaitForConfirmation(_ context.Context, _ solana.Signature, commitment rpc.CommitmentType) error {
	f.mu.Lock()
	f.confirmations = append(f.confirmations, commitment)
	f.mu.Unlock()
	return f.confirmErr
}

func (f *fakeLedger) GetLookupTables(_ context.Context, keys []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	return map[solana.PublicKey]solana.PublicKeySlice{}, nil
}

func (f *fakeLedger) sentCount() int {
	return int(atomic.LoadInt32(&f.sent))
}

type fakeRouter struct {
	t        *testing.T
	quoteErr error
	buildErr error
	// block, when set, holds GetQuote until closed
	block   chan struct{}
	entered chan struct{}

	quotes int32
	builds int32
	mu     sync.Mutex
	last   jupiter.QuoteParams
}

func (r *fakeRouter) GetQuote(ctx context.Context, p jupiter.QuoteParams) (*jupiter.Quote, error) {
	atomic.AddInt32(&r.quotes, 1)
	r.mu.Lock()
	r.last = p
	r.mu.Unlock()
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.quoteErr != nil {
		return nil, r.quoteErr
	}
	return &jupiter.Quote{
		InputMint:  p.InputMint.String(),
		OutputMint: p.OutputMint.String(),
		OutAmount:  "123456",
		Raw:        []byte(`{"outAmount":"123456"}`),
	}, nil
}

func (r *fakeRouter) BuildSwap(_ context.Context, _ *jupiter.Quote, payer solana.PublicKey) (*jupiter.SwapTransaction, error) {
	atomic.AddInt32(&r.builds, 1)
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	return &jupiter.SwapTransaction{Transaction: unsignedPayload(r.t, payer), LastValidBlockHeight: 4242}, nil
}

// unsignedPayload is the kind of transaction a router returns: one empty signature slot for the payer.
func unsignedPayload(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	ix := system.NewTransferInstruction(1000, payer, solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{9}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{}}
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

type fakeWallets struct {
	wallets map[int64]*wallet.Wallet
	loads   int32
}

func (f *fakeWallets) LoadWallet(_ context.Context, userID int64) (*wallet.Wallet, error) {
	atomic.AddInt32(&f.loads, 1)
	w, ok := f.wallets[userID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return w, nil
}

type fakeAccess struct {
	denied map[int64]bool
	err    error
	checks []string
	mu     sync.Mutex
}

func (f *fakeAccess) CheckAccess(_ context.Context, service string, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, service)
	if f.err != nil {
		return false, f.err
	}
	return !f.denied[userID], nil
}
