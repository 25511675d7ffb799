package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names recognized by the service. Anything other than
// "production" permits the simulated execution path when no signing
// key is configured.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// RetryConfig controls the resilient call executor.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// ProtectionConfig holds the MEV risk weights, strategy thresholds, and
// strategy toggles. The weights and thresholds are tuning heuristics with
// no derivation; they are configuration so deployments can adjust them
// without a rebuild.
type ProtectionConfig struct {
	// Risk factor weights, each added once per matched factor, sum capped at 1.0.
	WeightDEXProgram float64 // per matched DEX instruction
	WeightLargeTx    float64 // transaction size over SizeThresholdBytes
	WeightHighValue  float64 // estimated USD value over ValueThresholdUSD
	WeightCongestion float64 // network congestion over CongestionThreshold

	SizeThresholdBytes  int
	ValueThresholdUSD   float64
	CongestionThreshold float64 // fraction of the reference sampling period, 0-1

	// Strategy selection thresholds, evaluated high to low.
	BundleThreshold  float64
	RelayThreshold   float64
	DelayedThreshold float64

	BundlingEnabled     bool
	PrivateRelayEnabled bool
	BundleRelayURL      string
	BundleAuthKey       string // keypair for relay auth; empty disables bundling
	BundleCostEstimate  float64
	RelayCostEstimate   float64
	MaxDelay            time.Duration
}

// SignalsConfig configures the real-time signal stream manager.
type SignalsConfig struct {
	PumpFunWSURL     string
	DexScreenerWSURL string
	WhaleWatchWSURL  string
	ReconnectBase    time.Duration
	MaxReconnects    int
	FallbackAfter    time.Duration
	FallbackInterval time.Duration
}

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	Environment string
	LogLevel    string
	MetricsAddr string

	DatabaseURL string
	NATSURL     string

	SolanaRPCURL   string
	JupiterBaseURL string

	// Base58 private key for the trading wallet. Optional outside
	// production: when empty the engine runs its simulated path.
	WalletPrivateKey string

	Retry      RetryConfig
	Protection ProtectionConfig
	Signals    SignalsConfig
}

// Load reads configuration from environment variables and validates all
// required fields. Returns an error listing every invalid field rather than
// stopping at the first one.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.Environment = getEnvOrDefault("ENVIRONMENT", EnvDevelopment)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9090")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	cfg.JupiterBaseURL = getEnvOrDefault("JUPITER_BASE_URL", "https://quote-api.jup.ag/v6")

	cfg.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")
	if cfg.Environment == EnvProduction && cfg.WalletPrivateKey == "" {
		errs = append(errs, fmt.Errorf("WALLET_PRIVATE_KEY is required in production"))
	}

	var err error
	cfg.Retry.MaxAttempts, err = parseInt("RETRY_MAX_ATTEMPTS", 5)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Retry.BaseDelay, err = parseDuration("RETRY_BASE_DELAY", "1s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Retry.MaxJitter, err = parseDuration("RETRY_MAX_JITTER", "1s")
	if err != nil {
		errs = append(errs, err)
	}

	cfg.Protection, errs = loadProtection(errs)

	cfg.Signals.PumpFunWSURL = getEnvOrDefault("PUMPFUN_WS_URL", "wss://pumpportal.fun/api/data")
	cfg.Signals.DexScreenerWSURL = getEnvOrDefault("DEXSCREENER_WS_URL", "wss://io.dexscreener.com/dex/screener/pairs/h24/1")
	cfg.Signals.WhaleWatchWSURL = getEnvOrDefault("WHALEWATCH_WS_URL", "")
	cfg.Signals.ReconnectBase, err = parseDuration("SIGNALS_RECONNECT_BASE", "2s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Signals.MaxReconnects, err = parseInt("SIGNALS_MAX_RECONNECTS", 5)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Signals.FallbackAfter, err = parseDuration("SIGNALS_FALLBACK_AFTER", "10s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Signals.FallbackInterval, err = parseDuration("SIGNALS_FALLBACK_INTERVAL", "15s")
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadProtection(errs []error) (ProtectionConfig, []error) {
	p := ProtectionConfig{}
	var err error

	p.WeightDEXProgram, err = parseFloat("PROTECT_WEIGHT_DEX", 0.4)
	if err != nil {
		errs = append(errs, err)
	}
	p.WeightLargeTx, err = parseFloat("PROTECT_WEIGHT_SIZE", 0.2)
	if err != nil {
		errs = append(errs, err)
	}
	p.WeightHighValue, err = parseFloat("PROTECT_WEIGHT_VALUE", 0.3)
	if err != nil {
		errs = append(errs, err)
	}
	p.WeightCongestion, err = parseFloat("PROTECT_WEIGHT_CONGESTION", 0.1)
	if err != nil {
		errs = append(errs, err)
	}

	p.SizeThresholdBytes, err = parseInt("PROTECT_SIZE_THRESHOLD", 800)
	if err != nil {
		errs = append(errs, err)
	}
	p.ValueThresholdUSD, err = parseFloat("PROTECT_VALUE_THRESHOLD_USD", 1000)
	if err != nil {
		errs = append(errs, err)
	}
	p.CongestionThreshold, err = parseFloat("PROTECT_CONGESTION_THRESHOLD", 0.7)
	if err != nil {
		errs = append(errs, err)
	}

	p.BundleThreshold, err = parseFloat("PROTECT_BUNDLE_THRESHOLD", 0.7)
	if err != nil {
		errs = append(errs, err)
	}
	p.RelayThreshold, err = parseFloat("PROTECT_RELAY_THRESHOLD", 0.5)
	if err != nil {
		errs = append(errs, err)
	}
	p.DelayedThreshold, err = parseFloat("PROTECT_DELAYED_THRESHOLD", 0.3)
	if err != nil {
		errs = append(errs, err)
	}

	p.BundlingEnabled = parseBool("PROTECT_BUNDLING_ENABLED", true)
	p.PrivateRelayEnabled = parseBool("PROTECT_PRIVATE_RELAY_ENABLED", true)
	p.BundleRelayURL = getEnvOrDefault("JITO_BLOCK_ENGINE_URL", "https://mainnet.block-engine.jito.wtf")
	p.BundleAuthKey = os.Getenv("JITO_AUTH_KEYPAIR")
	p.BundleCostEstimate, err = parseFloat("PROTECT_BUNDLE_COST_SOL", 0.005)
	if err != nil {
		errs = append(errs, err)
	}
	p.RelayCostEstimate, err = parseFloat("PROTECT_RELAY_COST_SOL", 0.0001)
	if err != nil {
		errs = append(errs, err)
	}
	p.MaxDelay, err = parseDuration("PROTECT_MAX_DELAY", "3s")
	if err != nil {
		errs = append(errs, err)
	}

	return p, errs
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for binary initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// IsProduction reports whether the service runs with production semantics.
// The simulated trade path is only permitted when this is false.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// Validate checks cross-field constraints. Useful for testing configuration
// without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("Retry.MaxAttempts must be at least 1"))
	}
	if c.Retry.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("Retry.BaseDelay must be positive"))
	}

	p := c.Protection
	for name, w := range map[string]float64{
		"WeightDEXProgram": p.WeightDEXProgram,
		"WeightLargeTx":    p.WeightLargeTx,
		"WeightHighValue":  p.WeightHighValue,
		"WeightCongestion": p.WeightCongestion,
	} {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Errorf("Protection.%s must be in [0,1], got %v", name, w))
		}
	}
	if !(p.BundleThreshold > p.RelayThreshold && p.RelayThreshold > p.DelayedThreshold) {
		errs = append(errs, fmt.Errorf("protection thresholds must be strictly ordered bundle > relay > delayed"))
	}
	if p.MaxDelay <= 0 {
		errs = append(errs, fmt.Errorf("Protection.MaxDelay must be positive"))
	}

	s := c.Signals
	if s.ReconnectBase <= 0 {
		errs = append(errs, fmt.Errorf("Signals.ReconnectBase must be positive"))
	}
	if s.MaxReconnects < 1 {
		errs = append(errs, fmt.Errorf("Signals.MaxReconnects must be at least 1"))
	}
	if s.FallbackAfter <= 0 {
		errs = append(errs, fmt.Errorf("Signals.FallbackAfter must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid float %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return result
}
