// internal/dex/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrEmptyQuote    = errors.New("empty quote")
	ErrNoTransaction = errors.New("swap response has no transaction")
)

// APIError is returned when the routing service answers with an error field or a non-200 status.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("jupiter: %s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("jupiter: %s (status %d)", e.Message, e.Status)
}

type Config struct {
	QuoteURL string
	SwapURL  string
	RPS      float64
	Timeout  time.Duration
}

// Client is a single-attempt client for the quote and swap-build endpoints.
// Calls share one rate limiter, the provider's ceiling applies to both.
type Client struct {
	quoteURL string
	swapURL  string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		quoteURL: cfg.QuoteURL,
		swapURL:  cfg.SwapURL,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		logger:   logger.Named("jupiter"),
	}
}

type QuoteParams struct {
	InputMint        solana.PublicKey
	OutputMint       solana.PublicKey
	Amount           uint64 // base units of the input mint
	SlippageBps      int
	MaxAccounts      int
	OnlyDirectRoutes bool
}

// Quote keeps the raw response so it can be forwarded to the swap endpoint untouched.
type Quote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`

	Raw json.RawMessage `json:"-"`
}

type SwapTransaction struct {
	Transaction          string
	LookupTables         []solana.PublicKey
	LastValidBlockHeight uint64
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// GetQuote запрашивает котировку. Пустой ответ или ответ без outAmount считается ErrEmptyQuote.
func (c *Client) GetQuote(ctx context.Context, p QuoteParams) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", p.InputMint.String())
	q.Set("outputMint", p.OutputMint.String())
	q.Set("amount", strconv.FormatUint(p.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(p.SlippageBps))
	if p.MaxAccounts > 0 {
		q.Set("maxAccounts", strconv.Itoa(p.MaxAccounts))
	}
	q.Set("onlyDirectRoutes", strconv.FormatBool(p.OnlyDirectRoutes))
	q.Set("asLegacyTransaction", "false")

	body, err := c.do(ctx, http.MethodGet, c.quoteURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyQuote
	}
	var quote Quote
	if err := json.Unmarshal(trimmed, &quote); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if quote.OutAmount == "" {
		return nil, ErrEmptyQuote
	}
	quote.Raw = json.RawMessage(trimmed)

	c.logger.Debug("Quote received",
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount),
		zap.String("price_impact_pct", quote.PriceImpactPct))
	return &quote, nil
}

// BuildSwap asks the routing service for an unsigned transaction executing quote for payer.
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, payer solana.PublicKey) (*SwapTransaction, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, ErrEmptyQuote
	}
	payload := map[string]any{
		"userPublicKey":             payer.String(),
		"quoteResponse":             quote.Raw,
		"wrapAndUnwrapSol":          true,
		"dynamicComputeUnitLimit":   true,
		"prioritizationFeeLamports": "auto",
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.swapURL, reqBody)
	if err != nil {
		return nil, err
	}

	var sr struct {
		SwapTransaction             string   `json:"swapTransaction"`
		AddressLookupTableAddresses []string `json:"addressLookupTableAddresses"`
		LastValidBlockHeight        uint64   `json:"lastValidBlockHeight"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	if sr.SwapTransaction == "" {
		return nil, ErrNoTransaction
	}

	tables := make([]solana.PublicKey, 0, len(sr.AddressLookupTableAddresses))
	for _, addr := range sr.AddressLookupTableAddresses {
		key, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid lookup table address %q: %w", addr, err)
		}
		tables = append(tables, key)
	}
	return &SwapTransaction{
		Transaction:          sr.SwapTransaction,
		LookupTables:         tables,
		LastValidBlockHeight: sr.LastValidBlockHeight,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	if resp.StatusCode != http.StatusOK {
		msg := eb.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg, Code: eb.ErrorCode}
	}
	if eb.Error != "" {
		return nil, &APIError{Status: resp.StatusCode, Message: eb.Error, Code: eb.ErrorCode}
	}
	return data, nil
}
