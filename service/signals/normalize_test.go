package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	wifMint  = "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"
)

func TestRugRisk_WeightedIndicators(t *testing.T) {
	tests := []struct {
		name   string
		meta   RiskMetadata
		volume float64
		want   float64
	}{
		{
			name:   "healthy token scores zero",
			meta:   RiskMetadata{HolderTopPct: 20, LiquidityUSD: 50_000, Verified: true},
			volume: 25_000,
			want:   0,
		},
		{
			name:   "concentrated holders",
			meta:   RiskMetadata{HolderTopPct: 62, LiquidityUSD: 50_000, Verified: true},
			volume: 25_000,
			want:   0.3,
		},
		{
			name:   "thin liquidity and no volume",
			meta:   RiskMetadata{HolderTopPct: 10, LiquidityUSD: 4_000, Verified: true},
			volume: 500,
			want:   0.4,
		},
		{
			name:   "every indicator fires",
			meta:   RiskMetadata{HolderTopPct: 80, LiquidityUSD: 100, Verified: false},
			volume: 0,
			want:   0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rugRisk(&tt.meta, tt.volume)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestConfidenceFromVolume_Bounded(t *testing.T) {
	assert.InDelta(t, 0.3, confidenceFromVolume(0), 1e-9)
	assert.InDelta(t, 0.95, confidenceFromVolume(10_000_000), 1e-9)

	mid := confidenceFromVolume(50_000)
	assert.Greater(t, mid, 0.3)
	assert.Less(t, mid, 0.95)
}

func TestNormalizePumpFun_DefaultsToBuy(t *testing.T) {
	payload := []byte(`{
		"mint": "` + bonkMint + `",
		"symbol": "BONK",
		"solAmount": 1.5,
		"marketCapSol": 420,
		"volumeUsd": 800,
		"liquidityUsd": 5000,
		"holderTopPct": 65,
		"verified": false
	}`)

	sig, err := normalizePumpFun(payload)
	require.NoError(t, err)

	assert.Equal(t, ActionBuy, sig.Action, "new-listing events without a direction default to BUY")
	assert.Equal(t, SourcePumpFun, sig.Source)
	assert.Equal(t, bonkMint, sig.Address)
	assert.GreaterOrEqual(t, sig.Confidence, 0.3)
	assert.LessOrEqual(t, sig.Confidence, 0.95)
	require.NotNil(t, sig.Risk)
	// holders 65% + liquidity $5k + volume $800 + unverified
	assert.InDelta(t, 0.8, sig.Risk.RugRisk, 1e-9)
	assert.False(t, sig.Timestamp.IsZero())
	assert.NotEmpty(t, sig.ID)
}

func TestNormalizePumpFun_SellEvent(t *testing.T) {
	payload := []byte(`{"mint": "` + bonkMint + `", "symbol": "BONK", "txType": "sell", "volumeUsd": 50000}`)

	sig, err := normalizePumpFun(payload)
	require.NoError(t, err)
	assert.Equal(t, ActionSell, sig.Action)
}

func TestNormalizePumpFun_RejectsInvalidMint(t *testing.T) {
	_, err := normalizePumpFun([]byte(`{"mint": "not-a-mint", "symbol": "X"}`))
	assert.Error(t, err)

	_, err = normalizePumpFun([]byte(`{malformed`))
	assert.Error(t, err)
}

func TestNormalizeDexScreener(t *testing.T) {
	payload := []byte(`{
		"pair": {
			"baseToken": {"address": "` + wifMint + `", "symbol": "WIF"},
			"priceUsd": "1.8432",
			"volume": {"h24": 2500000},
			"liquidity": {"usd": 800000},
			"priceChange": {"h24": -12.5},
			"marketCap": 1800000000
		}
	}`)

	sig, err := normalizeDexScreener(payload)
	require.NoError(t, err)

	assert.Equal(t, ActionSell, sig.Action, "a falling pair signals SELL")
	assert.InDelta(t, 1.8432, sig.Price, 1e-9)
	assert.Equal(t, 2_500_000.0, sig.Volume24h)
	require.NotNil(t, sig.Risk)
	assert.InDelta(t, -12.5, sig.Risk.PriceChange24h, 1e-9)
	assert.InDelta(t, 0, sig.Risk.RugRisk, 1e-9)
}

func TestNormalizeDexScreener_BadPrice(t *testing.T) {
	payload := []byte(`{"pair": {"baseToken": {"address": "` + wifMint + `", "symbol": "WIF"}, "priceUsd": "n/a"}}`)
	_, err := normalizeDexScreener(payload)
	assert.Error(t, err)
}

func TestNormalizeWhaleWatch_InflowSignalsSell(t *testing.T) {
	payload := []byte(`{
		"tokenAddress": "` + bonkMint + `",
		"tokenSymbol": "BONK",
		"amountUsd": 350000,
		"priceUsd": 0.000021,
		"direction": "in"
	}`)

	sig, err := normalizeWhaleWatch(payload)
	require.NoError(t, err)
	assert.Equal(t, ActionSell, sig.Action)
	assert.Equal(t, SourceWhaleWatch, sig.Source)

	payload = []byte(`{"tokenAddress": "` + bonkMint + `", "tokenSymbol": "BONK", "amountUsd": 10, "direction": "out"}`)
	sig, err = normalizeWhaleWatch(payload)
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, sig.Action)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, validAddress(bonkMint))
	assert.True(t, validAddress("So11111111111111111111111111111111111111112"))
	assert.False(t, validAddress(""))
	assert.False(t, validAddress("0xdeadbeef"))
	assert.False(t, validAddress("abc"))
}
