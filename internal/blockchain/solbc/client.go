// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	NativeDecimals = 9

	defaultRPS            = 25
	defaultCallTimeout    = 10 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	defaultConfirmTimeout = 60 * time.Second
	defaultSendRetries    = 3
)

// Определение ошибок
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrTransactionFailed = errors.New("transaction failed on chain")
	ErrConfirmTimeout    = errors.New("confirmation timeout")
)

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) || errors.Is(err, ErrAccountNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find account")
}

type Options struct {
	RPS            float64
	CallTimeout    time.Duration
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	SendRetries    uint
}

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
// Every RPC round trip waits on a shared rate limiter and runs under its own deadline.
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger

	decimals sync.Map // solana.PublicKey -> uint8
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger, opts Options) *Client {
	if opts.RPS <= 0 {
		opts.RPS = defaultRPS
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = defaultConfirmTimeout
	}
	if opts.SendRetries == 0 {
		opts.SendRetries = defaultSendRetries
	}
	burst := int(opts.RPS)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		rpc:     rpc.New(rpcURL),
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), burst),
		opts:    opts,
		logger:  logger.Named("solbc-client"),
	}
}

func (c *Client) call(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	return callCtx, cancel, nil
}

// GetBalance возвращает баланс в лампортах.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	result, err := c.rpc.GetBalance(callCtx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Debug("GetBalance error", zap.String("owner", owner.String()), zap.Error(err))
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return result.Value, nil
}

// GetTokenBalance returns the owner's balance of mint in base units.
// A missing associated token account counts as zero.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("derive token account: %w", err)
	}

	callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	result, err := c.rpc.GetTokenAccountBalance(callCtx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return 0, nil
		}
		c.logger.Debug("GetTokenAccountBalance error", zap.String("ata", ata.String()), zap.Error(err))
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	if result == nil || result.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

// GetMintDecimals возвращает точность токена. Значения кешируются: decimals у mint неизменны.
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if mint.Equals(solana.SolMint) {
		return NativeDecimals, nil
	}
	if cached, ok := c.decimals.Load(mint); ok {
		return cached.(uint8), nil
	}

	data, err := c.getAccountData(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("get mint %s: %w", mint, err)
	}
	var m token.Mint
	if err := bin.NewBinDecoder(data).Decode(&m); err != nil {
		return 0, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	if !m.IsInitialized {
		return 0, fmt.Errorf("mint %s is not initialized", mint)
	}
	c.decimals.Store(mint, m.Decimals)
	return m.Decimals, nil
}

// AccountExists сообщает, существует ли аккаунт. Отсутствие аккаунта не считается ошибкой.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.getAccountData(ctx, account)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Client) getAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	result, err := c.rpc.GetAccountInfoWithOpts(callCtx, account, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		c.logger.Debug("GetAccountInfo error", zap.String("pubkey", account.String()), zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, ErrAccountNotFound
	}
	return result.Value.Data.GetBinary(), nil
}

// GetLatestBlockhash получает последний blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return solana.Hash{}, err
	}
	defer cancel()

	result, err := c.rpc.GetLatestBlockhash(callCtx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return result.Value.Blockhash, nil
}

// SendTransaction отправляет подписанную транзакцию без preflight-симуляции.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return solana.Signature{}, err
	}
	defer cancel()

	retries := c.opts.SendRetries
	sig, err := c.rpc.SendTransactionWithOpts(callCtx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &retries,
	})
	if err != nil {
		c.logger.Warn("SendTransaction error", zap.Error(err))
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// WaitForConfirmation polls the signature status until it reaches the requested
// commitment, fails on chain, or the confirmation window closes.
func (c *Client) WaitForConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
			}
			return ctx.Err()
		case <-ticker.C:
			done, err := c.checkStatus(ctx, signature, commitment)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (bool, error) {
	callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()

	statuses, err := c.rpc.GetSignatureStatuses(callCtx, false, signature)
	if err != nil {
		c.logger.Warn("Error getting signature statuses", zap.Error(err))
		return false, nil
	}
	if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return false, nil
	}
	status := statuses.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, status.Err)
	}
	return reached(status.ConfirmationStatus, commitment), nil
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch want {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// GetLookupTables загружает address lookup tables одним запросом.
func (c *Client) GetLookupTables(ctx context.Context, keys []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(keys))
	if len(keys) == 0 {
		return tables, nil
	}

	callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	res, err := c.rpc.GetMultipleAccountsWithOpts(callCtx, keys, &rpc.GetMultipleAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("get lookup tables: %w", err)
	}
	if len(res.Value) != len(keys) {
		return nil, fmt.Errorf("get lookup tables: expected %d accounts, got %d", len(keys), len(res.Value))
	}

	for i, acc := range res.Value {
		if acc == nil {
			return nil, fmt.Errorf("lookup table %s: %w", keys[i], ErrAccountNotFound)
		}
		state, err := addresslookuptable.DecodeAddressLookupTableState(acc.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("decode lookup table %s: %w", keys[i], err)
		}
		tables[keys[i]] = state.Addresses
	}
	return tables, nil
}
