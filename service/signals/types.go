package signals

import "time"

// Source identifies which upstream feed produced a signal.
type Source string

const (
	SourcePumpFun     Source = "pumpfun"
	SourceDexScreener Source = "dexscreener"
	SourceWhaleWatch  Source = "whalewatch"
	SourceSynthetic   Source = "synthetic"
)

// Action is the trade direction a signal suggests.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// RiskMetadata carries optional token-health indicators attached to a
// signal when the source provides them.
type RiskMetadata struct {
	MarketCap      float64
	LiquidityUSD   float64
	HolderTopPct   float64 // top-10 holder concentration, 0..100
	PriceChange24h float64
	RugRisk        float64 // 0..1, computed during normalization
	DevWalletPct   float64
	Verified       bool
}

// Signal is the normalized shape every source payload is mapped into.
// Signals are immutable once emitted; identifiers are globally unique
// and deduplication keeps the one with the newest timestamp.
type Signal struct {
	ID         string
	Symbol     string
	Address    string
	Action     Action
	Confidence float64 // 0..1
	Price      float64
	Volume24h  float64
	Timestamp  time.Time
	Source     Source
	Risk       *RiskMetadata
}

// TradeIntent is the fire-and-forget request a signal consumer may push
// back toward the execution layer. It is dropped silently when no
// receiver is attached or the receiver is saturated.
type TradeIntent struct {
	Token      string
	Side       Action
	Amount     float64
	Confidence float64
}

// ConnectionState is the lifecycle position of one source connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFallbackActive
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFallbackActive:
		return "fallback_active"
	default:
		return "unknown"
	}
}
