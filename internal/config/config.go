// Package config defines all configuration for the market-making bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun     bool             `mapstructure:"dry_run"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	API        APIConfig        `mapstructure:"api"`
	Window     WindowConfig     `mapstructure:"window"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Ladder     LadderConfig     `mapstructure:"ladder"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds venue API endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the bot derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL    string `mapstructure:"clob_base_url"`
	GammaBaseURL   string `mapstructure:"gamma_base_url"`
	DataAPIBaseURL string `mapstructure:"data_api_base_url"`
	WSMarketURL    string `mapstructure:"ws_market_url"`
	WSUserURL      string `mapstructure:"ws_user_url"`
	ApiKey         string `mapstructure:"api_key"`
	Secret         string `mapstructure:"secret"`
	Passphrase     string `mapstructure:"passphrase"`
}

// WindowConfig controls the roll of 15-minute BTC up/down windows.
//
//   - LengthSeconds: W in the design notes, the nominal window length (900).
//   - LeadSeconds: how long before next_start the scheduler wakes to fetch
//     the next window's metadata and prepare the switch.
//   - SkipFirstWindow: skip the partially-observed window live at startup.
//   - MaxWindows: stop after this many completed windows (0 = unlimited).
type WindowConfig struct {
	LengthSeconds   int  `mapstructure:"length_seconds"`
	LeadSeconds     int  `mapstructure:"lead_seconds"`
	SkipFirstWindow bool `mapstructure:"skip_first_window"`
	MaxWindows      int  `mapstructure:"max_windows"`
}

// PricingConfig tunes the triple-gate pricer (internal/pricing).
//
//   - BaseMargin: BASE_MARGIN ticks subtracted from the complementary
//     accountant/market anchors.
//   - Gamma: GAMMA, the inventory-skew coefficient applied to net(side).
//   - MaxSkew: MAX_SKEW, the clamp applied to the skew term in ticks.
//   - SlippageTol: SLIPPAGE_TOL, ticks the execution gate may cross our
//     own side's ask by when that side is light.
//   - MinPrice: MIN_PRICE, the floor of the valid order-price range.
//   - BaseSize: BASE_SIZE, the nominal per-rung share size before scaling.
//   - MaxPosition: MAX_POSITION, net(side) at which target_size clamps to 0.
//   - ArbitrageEnabled: gate the supplemented synthetic-arbitrage signal.
//   - ArbitrageMinEdgeTicks: minimum combined-ask discount to 1000 before
//     the arbitrage signal fires (see internal/pricing's Arbitrage).
type PricingConfig struct {
	BaseMargin            int64 `mapstructure:"base_margin"`
	Gamma                  float64 `mapstructure:"gamma"`
	MaxSkew                int64 `mapstructure:"max_skew"`
	SlippageTol            int64 `mapstructure:"slippage_tol"`
	MinPrice               int64 `mapstructure:"min_price"`
	BaseSize               float64 `mapstructure:"base_size"`
	MaxPosition            float64 `mapstructure:"max_position"`
	ArbitrageEnabled       bool  `mapstructure:"arbitrage_enabled"`
	ArbitrageMinEdgeTicks  int64 `mapstructure:"arbitrage_min_edge_ticks"`
}

// LadderConfig tunes the ideal-ladder construction and the reconciler's
// diff/hysteresis policy against the live order tracker.
//
//   - Depth: LADDER_DEPTH, the number of rungs descending from p_final.
//   - MinOrderSize: MIN_ORDER_SIZE, the smallest place/stack diff worth
//     sending to the venue.
//   - Hysteresis: HYSTERESIS, the overshoot fraction of target before the
//     reconciler cancels-and-replaces a price level instead of holding.
//   - BatchMax: BATCH_MAX, the maximum number of new orders flushed in one
//     batch POST.
type LadderConfig struct {
	Depth        int     `mapstructure:"depth"`
	MinOrderSize float64 `mapstructure:"min_order_size"`
	Hysteresis   float64 `mapstructure:"hysteresis"`
	BatchMax     int     `mapstructure:"batch_max"`
}

// RiskConfig sets the supervisor's hard stops for the current window.
//
//   - CircuitBreaker: cancel all and disable placements once Cy+Cn exceeds
//     this many ticks of total cost.
//   - ProfitLockMin: cancel all and disable placements once min_pnl (USD)
//     reaches this amount.
//   - StopLossEnabled/StopLossTicks: supplemented stop-loss, grounded on
//     the original bot's panic-sell stage — once the unhedged cost (total
//     cost minus the matched pair's cost, in ticks) exceeds StopLossTicks,
//     cancel all and disable placements. It does not sell the position.
type RiskConfig struct {
	CircuitBreaker   float64 `mapstructure:"circuit_breaker"`
	ProfitLockMin    float64 `mapstructure:"profit_lock_min"`
	StopLossEnabled  bool    `mapstructure:"stop_loss_enabled"`
	StopLossTicks    int64   `mapstructure:"stop_loss_ticks"`
}

// OracleConfig controls discovery of the active and next window and, when
// enabled, the spot-price feed used to set the strike at window open.
type OracleConfig struct {
	DiscoverySlugPrefix string        `mapstructure:"discovery_slug_prefix"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	SpotFeedURL         string        `mapstructure:"spot_feed_url"`
}

// StoreConfig sets where the append-only session log and optional JSONL
// trade record are written. This is an audit trail, not cross-restart
// position recovery: the Position Ledger is always rebuilt fresh from
// fills observed within a window.
type StoreConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	RecordTrades  bool   `mapstructure:"record_trades"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLYMARKET_PRIVATE_KEY, POLYMARKET_PROXY_WALLET,
// POLY_API_KEY, POLY_API_SECRET, POLY_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("POLYMARKET_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if addr := os.Getenv("POLYMARKET_PROXY_WALLET"); addr != "" {
		cfg.Wallet.FunderAddress = addr
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("POLY_DRY_RUN") == "true" || os.Getenv("POLY_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// setDefaults mirrors the literal example values used throughout the
// design notes (TICK=10, MIN_PRICE=100, BASE_SIZE=10, BASE_MARGIN=15,
// GAMMA=0.001, MAX_SKEW=100, SLIPPAGE_TOL=20, LADDER_DEPTH=5,
// HYSTERESIS=0.5, MAX_POSITION=75, PROFIT_LOCK_MIN=$10) so a bare config
// file with only wallet/api fields still runs sanely in dry-run mode.
func setDefaults(v *viper.Viper) {
	v.SetDefault("window.length_seconds", 900)
	v.SetDefault("window.lead_seconds", 5)
	v.SetDefault("window.skip_first_window", true)
	v.SetDefault("window.max_windows", 0)

	v.SetDefault("pricing.base_margin", 15)
	v.SetDefault("pricing.gamma", 0.001)
	v.SetDefault("pricing.max_skew", 100)
	v.SetDefault("pricing.slippage_tol", 20)
	v.SetDefault("pricing.min_price", 100)
	v.SetDefault("pricing.base_size", 10.0)
	v.SetDefault("pricing.max_position", 75.0)
	v.SetDefault("pricing.arbitrage_enabled", true)
	v.SetDefault("pricing.arbitrage_min_edge_ticks", 10)

	v.SetDefault("ladder.depth", 5)
	v.SetDefault("ladder.min_order_size", 1.0)
	v.SetDefault("ladder.hysteresis", 0.5)
	v.SetDefault("ladder.batch_max", 15)

	v.SetDefault("risk.circuit_breaker", 100000.0)
	v.SetDefault("risk.profit_lock_min", 10.0)
	v.SetDefault("risk.stop_loss_enabled", true)
	v.SetDefault("risk.stop_loss_ticks", 300)

	v.SetDefault("oracle.poll_interval", "3s")
	v.SetDefault("oracle.discovery_slug_prefix", "bitcoin-up-or-down")
	v.SetDefault("oracle.spot_feed_url", "")

	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("store.record_trades", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.data_api_base_url", "https://data-api.polymarket.com")
}

// Validate checks all required fields and value ranges against the
// invariants named in the design notes (e.g. MIN_PRICE must leave room
// below 990). Tick alignment of margins is not checked.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLYMARKET_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Window.LengthSeconds <= 0 {
		return fmt.Errorf("window.length_seconds must be > 0")
	}
	if c.Window.LeadSeconds <= 0 || c.Window.LeadSeconds >= c.Window.LengthSeconds {
		return fmt.Errorf("window.lead_seconds must be > 0 and < window.length_seconds")
	}
	if c.Pricing.MinPrice <= 0 || c.Pricing.MinPrice >= 990 {
		return fmt.Errorf("pricing.min_price must be in (0, 990)")
	}
	if c.Pricing.BaseSize <= 0 {
		return fmt.Errorf("pricing.base_size must be > 0")
	}
	if c.Pricing.MaxPosition <= 0 {
		return fmt.Errorf("pricing.max_position must be > 0")
	}
	if c.Ladder.Depth <= 0 {
		return fmt.Errorf("ladder.depth must be > 0")
	}
	if c.Ladder.MinOrderSize <= 0 {
		return fmt.Errorf("ladder.min_order_size must be > 0")
	}
	if c.Ladder.Hysteresis <= 0 {
		return fmt.Errorf("ladder.hysteresis must be > 0")
	}
	if c.Ladder.BatchMax <= 0 || c.Ladder.BatchMax > 15 {
		return fmt.Errorf("ladder.batch_max must be in (0, 15], the venue's batch POST limit")
	}
	if c.Risk.CircuitBreaker <= 0 {
		return fmt.Errorf("risk.circuit_breaker must be > 0")
	}
	if c.Risk.ProfitLockMin <= 0 {
		return fmt.Errorf("risk.profit_lock_min must be > 0")
	}
	return nil
}
