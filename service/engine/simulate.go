package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// simFee is the flat fee reported by simulated executions.
const simFee = 0.0001

// simulate fabricates a plausible fill without touching any external
// service. Engaged only when no signing key is configured in a
// non-production environment; production configurations reject the
// request during validation instead.
func (e *Engine) simulate(ctx context.Context, req *Request, start time.Time) *Result {
	price := 0.000001 + rand.Float64()*0.01
	slippage := rand.Float64() * req.MaxSlippagePct * 0.5

	result := &Result{
		RequestID:      req.ID,
		Success:        true,
		Signature:      fmt.Sprintf("sim_%d%04d", time.Now().UnixNano(), rand.Intn(10000)),
		Amount:         req.Amount,
		Price:          price,
		Fees:           simFee,
		SlippagePct:    slippage,
		ProcessingTime: time.Since(start),
	}

	e.logger.InfoContext(ctx, "simulated trade execution",
		"request_id", req.ID,
		"token", req.Token,
		"side", req.Side,
		"price", price,
	)
	return result
}
