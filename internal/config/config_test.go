// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validConfigJSON = `{
    "rpc_url": "https://api.mainnet-beta.solana.com",
    "quote_url": "https://quote-api.jup.ag/v6/quote",
    "swap_url": "https://quote-api.jup.ag/v6/swap",
    "wallet_secret": "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4=",
    "debug_logging": true,
    "swap": {
        "reserve_sol": 0.01,
        "ata_priority_fee": 5000
    }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "valid config with defaults",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCURL)
				assert.Equal(t, DefaultPairsURL, cfg.PairsURL)
				assert.Equal(t, StoreMemory, cfg.SubscriptionStore)
				assert.Equal(t, 50, cfg.Swap.SlippageBps)
				assert.Equal(t, 54, cfg.Swap.MaxAccounts)
				assert.True(t, cfg.Swap.DirectRoutesOnly)
				assert.InDelta(t, 0.01, cfg.Swap.ReserveSOL, 1e-12)
				assert.Equal(t, 3, cfg.Swap.SubmitAttempts)
				assert.Equal(t, time.Second, cfg.Snipe.ManualInterval())
				assert.Equal(t, 10*time.Second, cfg.Snipe.ListingInterval())
				assert.Equal(t, 10*time.Second, cfg.Limits.CallTimeout())
				assert.True(t, cfg.Snipe.SeedKnownAssets)
				assert.Equal(t, uint64(5000), cfg.Swap.ATAPriorityFee)
				assert.Zero(t, cfg.Swap.ATAComputeUnits)
			},
		},
		{
			name:    "missing swap url",
			content: `{"rpc_url": "https://rpc", "quote_url": "https://q", "wallet_secret": "x"}`,
			wantErr: true,
		},
		{
			name:    "non-http rpc url",
			content: `{"rpc_url": "wss://rpc", "quote_url": "https://q", "swap_url": "https://s", "wallet_secret": "x"}`,
			wantErr: true,
		},
		{
			name:    "missing wallet secret",
			content: `{"rpc_url": "https://rpc", "quote_url": "https://q", "swap_url": "https://s"}`,
			wantErr: true,
		},
		{
			name: "postgres store without database url",
			content: `{"rpc_url": "https://rpc", "quote_url": "https://q", "swap_url": "https://s",
				"wallet_secret": "x", "subscription_store": "postgres"}`,
			wantErr: true,
		},
		{
			name: "negative interval",
			content: `{"rpc_url": "https://rpc", "quote_url": "https://q", "swap_url": "https://s",
				"wallet_secret": "x", "snipe": {"manual_interval_ms": -1}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SNIPER_WALLET_SECRET", "from-env")
	t.Setenv("SNIPER_SWAP_RESERVE_SOL", "0.02")

	cfg, err := LoadConfig(writeConfig(t, validConfigJSON))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.WalletSecret)
	assert.InDelta(t, 0.02, cfg.Swap.ReserveSOL, 1e-12)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
