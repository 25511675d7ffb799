package engine

import "time"

// Side is the trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Request is one trade intent. Amount is denominated in SOL for BUY
// orders and in token units for SELL orders.
type Request struct {
	ID             string // assigned when empty
	Token          string // token mint address
	Side           Side
	Amount         float64
	MaxSlippagePct float64 // 0..50
	Priority       string  // free-form hint recorded with the trade
}

// Result is the single outcome produced for a Request. Failures still
// populate ProcessingTime and carry the reason in Error.
type Result struct {
	RequestID        string
	Success          bool
	Signature        string
	Amount           float64
	Price            float64
	Fees             float64 // quoted threshold minus realized output; may be negative
	SlippagePct      float64
	ComputeUnits     uint64
	ProtectionMethod string
	ProcessingTime   time.Duration
	Error            string
}
