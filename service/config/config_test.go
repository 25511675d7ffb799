package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/mantis_test")
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/mantis_test", cfg.DatabaseURL)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, EnvDevelopment, cfg.Environment) // Default
	assert.Equal(t, "info", cfg.LogLevel)            // Default
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ProtectionDefaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/mantis_test")
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Protection
	assert.Equal(t, 0.4, p.WeightDEXProgram)
	assert.Equal(t, 0.2, p.WeightLargeTx)
	assert.Equal(t, 0.3, p.WeightHighValue)
	assert.Equal(t, 0.1, p.WeightCongestion)
	assert.Equal(t, 0.7, p.BundleThreshold)
	assert.Equal(t, 0.5, p.RelayThreshold)
	assert.Equal(t, 0.3, p.DelayedThreshold)
	assert.Equal(t, 0.005, p.BundleCostEstimate)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_ProductionRequiresWalletKey(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/mantis_test")
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	os.Setenv("ENVIRONMENT", "production")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "WALLET_PRIVATE_KEY is required in production")
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	// Both required fields missing plus a malformed duration: all three
	// should be reported in one pass.
	os.Setenv("RETRY_BASE_DELAY", "not-a-duration")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/mantis_test")
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	os.Setenv("PROTECT_BUNDLE_THRESHOLD", "0.4")
	os.Setenv("PROTECT_RELAY_THRESHOLD", "0.5")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly ordered")
}

func TestValidate_WeightRange(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/mantis_test")
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	os.Setenv("PROTECT_WEIGHT_DEX", "1.5")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in [0,1]")
}

func cleanupEnv() {
	vars := []string{
		"ENVIRONMENT", "LOG_LEVEL", "METRICS_ADDR",
		"DATABASE_URL", "NATS_URL", "SOLANA_RPC_URL", "JUPITER_BASE_URL",
		"WALLET_PRIVATE_KEY",
		"RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY", "RETRY_MAX_JITTER",
		"PROTECT_WEIGHT_DEX", "PROTECT_WEIGHT_SIZE", "PROTECT_WEIGHT_VALUE", "PROTECT_WEIGHT_CONGESTION",
		"PROTECT_SIZE_THRESHOLD", "PROTECT_VALUE_THRESHOLD_USD", "PROTECT_CONGESTION_THRESHOLD",
		"PROTECT_BUNDLE_THRESHOLD", "PROTECT_RELAY_THRESHOLD", "PROTECT_DELAYED_THRESHOLD",
		"PROTECT_BUNDLING_ENABLED", "PROTECT_PRIVATE_RELAY_ENABLED",
		"JITO_BLOCK_ENGINE_URL", "JITO_AUTH_KEYPAIR",
		"PROTECT_BUNDLE_COST_SOL", "PROTECT_RELAY_COST_SOL", "PROTECT_MAX_DELAY",
		"PUMPFUN_WS_URL", "DEXSCREENER_WS_URL", "WHALEWATCH_WS_URL",
		"SIGNALS_RECONNECT_BASE", "SIGNALS_MAX_RECONNECTS",
		"SIGNALS_FALLBACK_AFTER", "SIGNALS_FALLBACK_INTERVAL",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
