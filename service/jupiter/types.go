package jupiter

import (
	"fmt"
	"strconv"
)

// Quote is the aggregator's route quote for a swap. Amount fields are
// decimal strings of base units, matching the wire format.
type Quote struct {
	InputMint            string      `json:"inputMint"`
	InAmount             string      `json:"inAmount"`
	OutputMint           string      `json:"outputMint"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SwapMode             string      `json:"swapMode"`
	SlippageBps          int         `json:"slippageBps"`
	PriceImpactPct       string      `json:"priceImpactPct"`
	RoutePlan            []RouteStep `json:"routePlan,omitempty"`
}

// RouteStep is one hop of the quoted route.
type RouteStep struct {
	SwapInfo struct {
		AmmKey     string `json:"ammKey"`
		Label      string `json:"label"`
		InputMint  string `json:"inputMint"`
		OutputMint string `json:"outputMint"`
		InAmount   string `json:"inAmount"`
		OutAmount  string `json:"outAmount"`
	} `json:"swapInfo"`
	Percent int `json:"percent"`
}

// OutAmountUint parses the quoted output amount.
func (q *Quote) OutAmountUint() (uint64, error) {
	return parseAmount("outAmount", q.OutAmount)
}

// OtherAmountThresholdUint parses the worst-acceptable output amount.
func (q *Quote) OtherAmountThresholdUint() (uint64, error) {
	return parseAmount("otherAmountThreshold", q.OtherAmountThreshold)
}

// InAmountUint parses the quoted input amount.
func (q *Quote) InAmountUint() (uint64, error) {
	return parseAmount("inAmount", q.InAmount)
}

func parseAmount(field, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return n, nil
}

// SwapResponse carries the ready-to-sign serialized transaction for a quote.
type SwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"` // base64
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// priceResponse is the shape of the price endpoint payload.
type priceResponse struct {
	Data map[string]struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	} `json:"data"`
}
