package engine

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// Validation and execution failure reasons surfaced in Result.Error.
// All are terminal for the request; the engine never retries a
// submission on the caller's behalf.
var (
	ErrInvalidAddress       = errors.New("invalid token address")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidSlippage      = errors.New("slippage must be between 0 and 50 percent")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrWalletNotInitialized = errors.New("wallet not initialized")
	ErrQuoteFailed          = errors.New("failed to fetch quote")
	ErrSwapFetchFailed      = errors.New("failed to fetch swap transaction")
	ErrSubmissionFailed     = errors.New("transaction submission failed")
)

// validate runs every structural check that must pass before the engine
// touches the network.
func (e *Engine) validate(req *Request) error {
	if _, err := solanago.PublicKeyFromBase58(req.Token); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, req.Token)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, req.Amount)
	}
	if req.MaxSlippagePct < 0 || req.MaxSlippagePct > 50 {
		return fmt.Errorf("%w: got %v", ErrInvalidSlippage, req.MaxSlippagePct)
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return fmt.Errorf("unknown trade side %q", req.Side)
	}
	if e.wallet == nil && e.cfg.IsProduction() {
		return ErrWalletNotInitialized
	}
	return nil
}

// simulated reports whether the development simulation path is engaged:
// no signing key configured and a non-production environment. Production
// never simulates; validate rejects it first.
func (e *Engine) simulated() bool {
	return e.wallet == nil && !e.cfg.IsProduction()
}
