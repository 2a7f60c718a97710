// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	License            string `mapstructure:"license"`
	KeygenAccountID    string `mapstructure:"keygen_account_id"`
	KeygenProductID    string `mapstructure:"keygen_product_id"`
	KeygenProductToken string `mapstructure:"keygen_product_token"`

	RPCURL      string `mapstructure:"rpc_url"`
	QuoteURL    string `mapstructure:"quote_url"`
	SwapURL     string `mapstructure:"swap_url"`
	PairsURL    string `mapstructure:"pairs_url"`
	DatabaseURL string `mapstructure:"database_url"`

	WalletSecret      string `mapstructure:"wallet_secret"`
	SubscriptionStore string `mapstructure:"subscription_store"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`
	MetricsAddr  string `mapstructure:"metrics_addr"`

	Swap   SwapConfig   `mapstructure:"swap"`
	Limits LimitsConfig `mapstructure:"limits"`
	Snipe  SnipeConfig  `mapstructure:"snipe"`
}

type SwapConfig struct {
	SlippageBps      int     `mapstructure:"slippage_bps"`
	MaxAccounts      int     `mapstructure:"max_accounts"`
	DirectRoutesOnly bool    `mapstructure:"direct_routes_only"`
	ReserveSOL       float64 `mapstructure:"reserve_sol"`
	DeadlineMS       int     `mapstructure:"deadline_ms"`
	SettleDelayMS    int     `mapstructure:"settle_delay_ms"`
	SubmitAttempts   int     `mapstructure:"submit_attempts"`
	FeeBps           int     `mapstructure:"fee_bps"`
	FeeWallet        string  `mapstructure:"fee_wallet"`
	ATAComputeUnits  uint32  `mapstructure:"ata_compute_units"`
	ATAPriorityFee   uint64  `mapstructure:"ata_priority_fee"`
}

type LimitsConfig struct {
	RouterRPS     float64 `mapstructure:"router_rps"`
	RPCRPS        float64 `mapstructure:"rpc_rps"`
	CallTimeoutMS int     `mapstructure:"call_timeout_ms"`
}

type SnipeConfig struct {
	ManualIntervalMS  int  `mapstructure:"manual_interval_ms"`
	ListingIntervalMS int  `mapstructure:"listing_interval_ms"`
	SeedKnownAssets   bool `mapstructure:"seed_known_assets"`
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const (
	DefaultSlippageBps       = 50
	DefaultMaxAccounts       = 54
	DefaultReserveSOL        = 0.005
	DefaultDeadlineMS        = 90_000
	DefaultSettleDelayMS     = 1000
	DefaultSubmitAttempts    = 3
	DefaultFeeBps            = 100
	DefaultRouterRPS         = 10
	DefaultRPCRPS            = 25
	DefaultCallTimeoutMS     = 10_000
	DefaultManualIntervalMS  = 1000
	DefaultListingIntervalMS = 10_000
	DefaultPairsURL          = "https://api.raydium.io/pairs"
	DefaultLogFile           = "sniper.log"
)

// LoadConfig reads the file at path (json/yaml/toml by extension), applies
// defaults and SNIPER_* environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"pairs_url":                 DefaultPairsURL,
		"subscription_store":        StoreMemory,
		"log_file":                  DefaultLogFile,
		"swap.slippage_bps":         DefaultSlippageBps,
		"swap.max_accounts":         DefaultMaxAccounts,
		"swap.direct_routes_only":   true,
		"swap.reserve_sol":          DefaultReserveSOL,
		"swap.deadline_ms":          DefaultDeadlineMS,
		"swap.settle_delay_ms":      DefaultSettleDelayMS,
		"swap.submit_attempts":      DefaultSubmitAttempts,
		"swap.fee_bps":              DefaultFeeBps,
		"limits.router_rps":         DefaultRouterRPS,
		"limits.rpc_rps":            DefaultRPCRPS,
		"limits.call_timeout_ms":    DefaultCallTimeoutMS,
		"snipe.manual_interval_ms":  DefaultManualIntervalMS,
		"snipe.listing_interval_ms": DefaultListingIntervalMS,
		"snipe.seed_known_assets":   true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"license", "keygen_account_id", "keygen_product_id", "keygen_product_token",
		"rpc_url", "quote_url", "swap_url", "database_url", "wallet_secret",
		"debug_logging", "metrics_addr", "swap.fee_wallet",
	} {
		_ = v.BindEnv(key)
	}
}

func validateConfig(cfg *Config) error {
	required := map[string]string{
		"rpc_url":   cfg.RPCURL,
		"quote_url": cfg.QuoteURL,
		"swap_url":  cfg.SwapURL,
		"pairs_url": cfg.PairsURL,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", key)
		}
		if err := validateURLWithCache(value, "http"); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if cfg.WalletSecret == "" {
		return errors.New("wallet_secret is required")
	}
	switch cfg.SubscriptionStore {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("database_url is required for the postgres subscription store")
		}
	default:
		return fmt.Errorf("unknown subscription_store %q", cfg.SubscriptionStore)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.Swap.SlippageBps <= 0 || cfg.Swap.SlippageBps > 10_000 {
		return errors.New("invalid swap.slippage_bps")
	}
	if cfg.Swap.MaxAccounts <= 0 {
		return errors.New("invalid swap.max_accounts")
	}
	if cfg.Swap.ReserveSOL < 0 {
		return errors.New("invalid swap.reserve_sol")
	}
	if cfg.Swap.DeadlineMS <= 0 {
		return errors.New("invalid swap.deadline_ms")
	}
	if cfg.Swap.SettleDelayMS < 0 {
		return errors.New("invalid swap.settle_delay_ms")
	}
	if cfg.Swap.SubmitAttempts <= 0 {
		return errors.New("invalid swap.submit_attempts")
	}
	if cfg.Swap.FeeBps < 0 || cfg.Swap.FeeBps > 10_000 {
		return errors.New("invalid swap.fee_bps")
	}
	if cfg.Limits.RouterRPS <= 0 || cfg.Limits.RPCRPS <= 0 {
		return errors.New("rate limits must be positive")
	}
	if cfg.Limits.CallTimeoutMS <= 0 {
		return errors.New("invalid limits.call_timeout_ms")
	}
	if cfg.Snipe.ManualIntervalMS <= 0 {
		return errors.New("invalid snipe.manual_interval_ms")
	}
	if cfg.Snipe.ListingIntervalMS <= 0 {
		return errors.New("invalid snipe.listing_interval_ms")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func (c SwapConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineMS) * time.Millisecond
}

func (c SwapConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

func (c LimitsConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

func (c SnipeConfig) ManualInterval() time.Duration {
	return time.Duration(c.ManualIntervalMS) * time.Millisecond
}

func (c SnipeConfig) ListingInterval() time.Duration {
	return time.Duration(c.ListingIntervalMS) * time.Millisecond
}
