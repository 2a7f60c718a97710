package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/config"
)

func testConfig(pairsURL string) *config.Config {
	return &config.Config{
		RPCURL:            "http://127.0.0.1:1",
		QuoteURL:          "http://127.0.0.1:1/quote",
		SwapURL:           "http://127.0.0.1:1/swap",
		PairsURL:          pairsURL,
		WalletSecret:      "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4=",
		SubscriptionStore: config.StoreMemory,
		Swap: config.SwapConfig{
			SlippageBps:      config.DefaultSlippageBps,
			MaxAccounts:      config.DefaultMaxAccounts,
			DirectRoutesOnly: true,
			ReserveSOL:       config.DefaultReserveSOL,
			DeadlineMS:       config.DefaultDeadlineMS,
			SubmitAttempts:   config.DefaultSubmitAttempts,
			FeeBps:           config.DefaultFeeBps,
		},
		Limits: config.LimitsConfig{
			RouterRPS:     config.DefaultRouterRPS,
			RPCRPS:        config.DefaultRPCRPS,
			CallTimeoutMS: 1000,
		},
		Snipe: config.SnipeConfig{
			ManualIntervalMS:  10,
			ListingIntervalMS: 10,
			SeedKnownAssets:   true,
		},
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	r := NewRunner(testConfig("http://127.0.0.1:1"), zap.NewNop())
	assert.Error(t, r.Run(context.Background()))
}

func TestRunnerInitializeAndRun(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(feed.Close)

	r := NewRunner(testConfig(feed.URL), zap.NewNop())
	require.NoError(t, r.Initialize(context.Background()))

	require.NotNil(t, r.Orchestrator())
	require.NotNil(t, r.Subscriptions())
	require.NotNil(t, r.Wallets())
	require.NotNil(t, r.Access())
	require.NotNil(t, r.Events())

	ctx := context.Background()
	w, err := r.Wallets().Create(ctx, 1)
	require.NoError(t, err)
	loaded, err := r.Wallets().LoadWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey, loaded.PublicKey)

	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, r.Run(runCtx))
}

func TestRunnerInitializeRejectsBadSecret(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.WalletSecret = "not-a-fernet-key"
	assert.Error(t, NewRunner(cfg, zap.NewNop()).Initialize(context.Background()))
}
