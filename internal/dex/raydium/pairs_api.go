// internal/dex/raydium/pairs_api.go
package raydium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultPairsURL       = "https://api.raydium.io/pairs"
	defaultRequestTimeout = 10 * time.Second
	maxRetries            = 3
)

// Pair – одна торговая пара из ленты листингов.
type Pair struct {
	Name      string  `json:"name"`
	AmmID     string  `json:"ammId"`
	LpMint    string  `json:"lpMint"`
	BaseMint  string  `json:"baseMint"`
	QuoteMint string  `json:"quoteMint"`
	Liquidity float64 `json:"liquidity"`
}

// StatusError описывает неуспешный HTTP-ответ ленты.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

type PairsConfig struct {
	URL             string
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// PairsService reads the pair listing feed.
type PairsService struct {
	client  *http.Client
	limiter *rate.Limiter
	config  PairsConfig
	logger  *zap.Logger
}

// NewPairsService создает новый экземпляр сервиса ленты пар
func NewPairsService(cfg PairsConfig, logger *zap.Logger) *PairsService {
	if cfg.URL == "" {
		cfg.URL = DefaultPairsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return &PairsService{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		config:  cfg,
		logger:  logger.Named("raydium-pairs"),
	}
}

// FetchPairs получает список пар; транзиентные ошибки (сеть, 429, 5xx) повторяются до трёх раз.
func (s *PairsService) FetchPairs(ctx context.Context) ([]Pair, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.InitialInterval
	policy.MaxInterval = s.config.MaxInterval

	attempt := 0
	op := func() ([]Pair, error) {
		attempt++
		pairs, err := s.fetchPairs(ctx)
		if err == nil {
			return pairs, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Transient() {
			return nil, backoff.Permanent(err)
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, next time.Duration) {
		s.logger.Warn("retry fetching pairs",
			zap.Int("attempt", attempt),
			zap.Duration("next_in", next),
			zap.Error(err))
	}

	pairs, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxRetries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pairs after %d attempts: %w", attempt, err)
	}
	return pairs, nil
}

// FetchBaseMints returns the distinct base mints of the feed in feed order.
func (s *PairsService) FetchBaseMints(ctx context.Context) ([]string, error) {
	pairs, err := s.FetchPairs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(pairs))
	mints := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.BaseMint == "" {
			continue
		}
		if _, ok := seen[p.BaseMint]; ok {
			continue
		}
		seen[p.BaseMint] = struct{}{}
		mints = append(mints, p.BaseMint)
	}
	return mints, nil
}

// fetchPairs выполняет один запрос к ленте
func (s *PairsService) fetchPairs(ctx context.Context) ([]Pair, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	s.logger.Debug("api request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var pairs []Pair
	if err := json.NewDecoder(resp.Body).Decode(&pairs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return pairs, nil
}
