package events

import (
	"time"
)

// Event type tags carried on every published event. Observers (a UI
// broadcaster, the CLI tail command) switch on these.
const (
	TypeSignal          = "signal"
	TypeTradeStarted    = "tradeStarted"
	TypeTradeCompleted  = "tradeCompleted"
	TypeTradeFailed     = "tradeFailed"
	TypeTradeUpdate     = "tradeUpdate"
	TypePortfolioUpdate = "portfolioUpdate"
)

// SignalEvent is a normalized real-time signal published to "signals.{source}".
type SignalEvent struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Address    string    `json:"address"`
	Action     string    `json:"action"` // BUY or SELL
	Confidence float64   `json:"confidence"`
	Price      float64   `json:"price"`
	Volume24h  float64   `json:"volume_24h"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`

	// Optional risk metadata, omitted when the source provides none.
	MarketCap      float64 `json:"market_cap,omitempty"`
	LiquidityUSD   float64 `json:"liquidity_usd,omitempty"`
	HolderCount    int     `json:"holder_count,omitempty"`
	PriceChange24h float64 `json:"price_change_24h,omitempty"`
	RugRisk        float64 `json:"rug_risk,omitempty"`
	DevWalletPct   float64 `json:"dev_wallet_pct,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// TradeEvent is a trade lifecycle notification published to
// "trades.{token}.{phase}". For one request the started event always
// precedes the completed or failed event.
type TradeEvent struct {
	Type        string    `json:"type"`
	RequestID   string    `json:"request_id"`
	Token       string    `json:"token"`
	Side        string    `json:"side"` // BUY or SELL
	Amount      float64   `json:"amount"`
	Price       float64   `json:"price,omitempty"`
	Fees        float64   `json:"fees,omitempty"`
	SlippagePct float64   `json:"slippage_pct,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	PublishedAt time.Time `json:"published_at"`
}

// PortfolioEvent is a coarse position snapshot published to
// "portfolio.updates" after a confirmed trade.
type PortfolioEvent struct {
	Type      string    `json:"type"`
	Token     string    `json:"token"`
	Quantity  float64   `json:"quantity"`
	AvgPrice  float64   `json:"avg_price"`
	ValueSOL  float64   `json:"value_sol"`
	UpdatedAt time.Time `json:"updated_at"`

	PublishedAt time.Time `json:"published_at"`
}
