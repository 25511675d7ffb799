package protect

import (
	"testing"
	"time"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/stretchr/testify/assert"
)

func protectionConfig() config.ProtectionConfig {
	return config.ProtectionConfig{
		WeightDEXProgram:    0.4,
		WeightLargeTx:       0.2,
		WeightHighValue:     0.3,
		WeightCongestion:    0.1,
		SizeThresholdBytes:  800,
		ValueThresholdUSD:   1000,
		CongestionThreshold: 0.7,
		BundleThreshold:     0.7,
		RelayThreshold:      0.5,
		DelayedThreshold:    0.3,
		BundlingEnabled:     true,
		PrivateRelayEnabled: true,
		BundleCostEstimate:  0.005,
		RelayCostEstimate:   0.0001,
		MaxDelay:            100 * time.Millisecond,
	}
}

func TestScoreRisk_Scenario(t *testing.T) {
	// One DEX instruction + $1,500 value + high congestion must reach at
	// least 0.4 + 0.3 + 0.1 = 0.8, which selects the bundled path when
	// bundling is configured.
	cfg := protectionConfig()
	score := ScoreRisk(cfg, RiskFactors{
		DEXProgramMatches: 1,
		EstimatedValueUSD: 1500,
		Congestion:        0.9,
	})
	assert.InDelta(t, 0.8, score, 1e-9)
	assert.Greater(t, score, cfg.BundleThreshold)
}

func TestScoreRisk_MonotonicAndClamped(t *testing.T) {
	cfg := protectionConfig()

	prev := 0.0
	steps := []RiskFactors{
		{},
		{DEXProgramMatches: 1},
		{DEXProgramMatches: 1, SizeBytes: 1000},
		{DEXProgramMatches: 1, SizeBytes: 1000, EstimatedValueUSD: 2000},
		{DEXProgramMatches: 1, SizeBytes: 1000, EstimatedValueUSD: 2000, Congestion: 0.95},
		{DEXProgramMatches: 4, SizeBytes: 1000, EstimatedValueUSD: 2000, Congestion: 0.95},
	}
	for i, f := range steps {
		score := ScoreRisk(cfg, f)
		assert.GreaterOrEqual(t, score, prev, "adding factors must never decrease the score (step %d)", i)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}

	// Many DEX matches overflow the raw sum; the score stays clamped.
	assert.Equal(t, 1.0, ScoreRisk(cfg, RiskFactors{DEXProgramMatches: 10}))
}

func TestScoreRisk_ThresholdsAreExclusive(t *testing.T) {
	cfg := protectionConfig()

	// Exactly at a threshold does not trigger the factor.
	assert.Equal(t, 0.0, ScoreRisk(cfg, RiskFactors{
		SizeBytes:         cfg.SizeThresholdBytes,
		EstimatedValueUSD: cfg.ValueThresholdUSD,
		Congestion:        cfg.CongestionThreshold,
	}))
}
