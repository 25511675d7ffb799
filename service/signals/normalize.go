package signals

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
)

// Rug-risk indicator weights. Each fires independently and the sum is
// capped at 1.0.
const (
	rugWeightHolders    = 0.3 // top-10 holders own more than half the supply
	rugWeightLiquidity  = 0.2 // liquidity under $10,000
	rugWeightVolume     = 0.2 // 24h volume under $1,000
	rugWeightUnverified = 0.1

	rugHolderPctThreshold = 50.0
	rugLiquidityThreshold = 10_000.0
	rugVolumeThreshold    = 1_000.0
)

// rugRisk computes a capped weighted sum of token-health indicators.
func rugRisk(meta *RiskMetadata, volume24h float64) float64 {
	score := 0.0
	if meta.HolderTopPct > rugHolderPctThreshold {
		score += rugWeightHolders
	}
	if meta.LiquidityUSD < rugLiquidityThreshold {
		score += rugWeightLiquidity
	}
	if volume24h < rugVolumeThreshold {
		score += rugWeightVolume
	}
	if !meta.Verified {
		score += rugWeightUnverified
	}
	return math.Min(score, 1.0)
}

// confidenceFromVolume maps 24h volume into a bounded confidence score.
// Zero volume still carries the floor so new listings are not discarded.
func confidenceFromVolume(volume float64) float64 {
	const (
		floor = 0.3
		ceil  = 0.95
	)
	c := floor + volume/250_000
	return math.Min(c, ceil)
}

// validAddress reports whether s decodes as a 32-byte base58 public key.
func validAddress(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == 32
}

// pumpFunPayload is the new-listing event shape from the pump.fun feed.
type pumpFunPayload struct {
	Mint         string  `json:"mint"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	SolAmount    float64 `json:"solAmount"`
	MarketCapSol float64 `json:"marketCapSol"`
	VolumeUSD    float64 `json:"volumeUsd"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	HolderTopPct float64 `json:"holderTopPct"`
	DevWalletPct float64 `json:"devWalletPct"`
	Verified     bool    `json:"verified"`
	TxType       string  `json:"txType"`
}

func normalizePumpFun(payload []byte) (*Signal, error) {
	var p pumpFunPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pumpfun payload: %w", err)
	}
	if !validAddress(p.Mint) {
		return nil, fmt.Errorf("pumpfun payload has invalid mint %q", p.Mint)
	}

	now := time.Now().UTC()
	meta := &RiskMetadata{
		MarketCap:    p.MarketCapSol,
		LiquidityUSD: p.LiquidityUSD,
		HolderTopPct: p.HolderTopPct,
		DevWalletPct: p.DevWalletPct,
		Verified:     p.Verified,
	}
	meta.RugRisk = rugRisk(meta, p.VolumeUSD)

	// New-listing events carry no explicit direction; default to BUY.
	action := ActionBuy
	if p.TxType == "sell" {
		action = ActionSell
	}

	return &Signal{
		ID:         fmt.Sprintf("pumpfun-%s-%d", p.Mint, now.UnixNano()),
		Symbol:     p.Symbol,
		Address:    p.Mint,
		Action:     action,
		Confidence: confidenceFromVolume(p.VolumeUSD),
		Price:      p.SolAmount,
		Volume24h:  p.VolumeUSD,
		Timestamp:  now,
		Source:     SourcePumpFun,
		Risk:       meta,
	}, nil
}

// dexScreenerPayload is one trending pair from the screener feed.
type dexScreenerPayload struct {
	Pair struct {
		BaseToken struct {
			Address string `json:"address"`
			Symbol  string `json:"symbol"`
		} `json:"baseToken"`
		PriceUSD string `json:"priceUsd"`
		Volume   struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
		PriceChange struct {
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
		MarketCap float64 `json:"marketCap"`
	} `json:"pair"`
}

func normalizeDexScreener(payload []byte) (*Signal, error) {
	var p dexScreenerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode dexscreener payload: %w", err)
	}
	if !validAddress(p.Pair.BaseToken.Address) {
		return nil, fmt.Errorf("dexscreener payload has invalid address %q", p.Pair.BaseToken.Address)
	}

	price, err := strconv.ParseFloat(p.Pair.PriceUSD, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dexscreener price %q: %w", p.Pair.PriceUSD, err)
	}

	now := time.Now().UTC()
	meta := &RiskMetadata{
		MarketCap:      p.Pair.MarketCap,
		LiquidityUSD:   p.Pair.Liquidity.USD,
		PriceChange24h: p.Pair.PriceChange.H24,
		Verified:       true, // screener lists indexed pairs only
	}
	meta.RugRisk = rugRisk(meta, p.Pair.Volume.H24)

	action := ActionBuy
	if p.Pair.PriceChange.H24 < 0 {
		action = ActionSell
	}

	return &Signal{
		ID:         fmt.Sprintf("dexscreener-%s-%d", p.Pair.BaseToken.Address, now.UnixNano()),
		Symbol:     p.Pair.BaseToken.Symbol,
		Address:    p.Pair.BaseToken.Address,
		Action:     action,
		Confidence: confidenceFromVolume(p.Pair.Volume.H24),
		Price:      price,
		Volume24h:  p.Pair.Volume.H24,
		Timestamp:  now,
		Source:     SourceDexScreener,
		Risk:       meta,
	}, nil
}

// whaleWatchPayload is a large-transfer notification.
type whaleWatchPayload struct {
	TokenAddress string  `json:"tokenAddress"`
	TokenSymbol  string  `json:"tokenSymbol"`
	AmountUSD    float64 `json:"amountUsd"`
	PriceUSD     float64 `json:"priceUsd"`
	Direction    string  `json:"direction"` // "in" toward exchanges, "out" away
}

func normalizeWhaleWatch(payload []byte) (*Signal, error) {
	var p whaleWatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode whalewatch payload: %w", err)
	}
	if !validAddress(p.TokenAddress) {
		return nil, fmt.Errorf("whalewatch payload has invalid address %q", p.TokenAddress)
	}

	now := time.Now().UTC()

	// Transfers toward exchanges usually precede sells.
	action := ActionBuy
	if p.Direction == "in" {
		action = ActionSell
	}

	return &Signal{
		ID:         fmt.Sprintf("whalewatch-%s-%d", p.TokenAddress, now.UnixNano()),
		Symbol:     p.TokenSymbol,
		Address:    p.TokenAddress,
		Action:     action,
		Confidence: confidenceFromVolume(p.AmountUSD),
		Price:      p.PriceUSD,
		Volume24h:  p.AmountUSD,
		Timestamp:  now,
		Source:     SourceWhaleWatch,
	}, nil
}
