package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mantis-trade/mantis/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real
// Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetTokenAccountBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenAccountBalanceResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client wraps the RPC client with the domain operations the execution
// engine needs: balance reads and submit-then-confirm.
type Client struct {
	rpc     RPCClient
	logger  *slog.Logger
	metrics *metrics.Metrics

	// confirmPollInterval controls how often SubmitAndConfirm polls
	// signature status. Overridable in tests.
	confirmPollInterval time.Duration
}

// NewClient creates a new Solana client. If m is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:                 rpcClient,
		logger:              logger,
		metrics:             m,
		confirmPollInterval: 500 * time.Millisecond,
	}
}

// SOLBalance returns the native balance of the account in lamports.
func (c *Client) SOLBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	c.recordCall("GetBalance", err, start)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

// TokenBalance returns the balance of owner's associated token account for
// mint, in base units. A missing token account reads as zero balance.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("derive associated token address: %w", err)
	}

	start := time.Now()
	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	c.recordCall("GetTokenAccountBalance", err, start)
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	if out.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// LatestBlockhash returns a recent blockhash at confirmed commitment.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	c.recordCall("GetLatestBlockhash", err, start)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// SubmitResult describes a confirmed submission.
type SubmitResult struct {
	Signature    solana.Signature
	Slot         uint64
	ComputeUnits uint64
}

// Submit broadcasts a signed transaction without waiting for confirmation.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	c.recordCall("SendTransaction", err, start)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// SubmitAndConfirm broadcasts a signed transaction and polls until it
// reaches confirmed commitment or ctx expires. Compute units consumed are
// filled in best-effort from the confirmed transaction meta.
func (c *Client) SubmitAndConfirm(ctx context.Context, tx *solana.Transaction) (*SubmitResult, error) {
	sig, err := c.Submit(ctx, tx)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "transaction submitted, awaiting confirmation",
		"signature", sig.String(),
	)

	ticker := time.NewTicker(c.confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("confirmation of %s: %w", sig.String(), ctx.Err())
		case <-ticker.C:
		}

		start := time.Now()
		statuses, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		c.recordCall("GetSignatureStatuses", err, start)
		if err != nil {
			c.logger.WarnContext(ctx, "signature status poll failed",
				"signature", sig.String(),
				"error", err,
			)
			continue
		}
		if len(statuses.Value) == 0 || statuses.Value[0] == nil {
			continue
		}

		status := statuses.Value[0]
		if status.Err != nil {
			return nil, fmt.Errorf("transaction %s failed on chain: %v", sig.String(), status.Err)
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			result := &SubmitResult{
				Signature: sig,
				Slot:      status.Slot,
			}
			result.ComputeUnits = c.computeUnits(ctx, sig)
			c.logger.InfoContext(ctx, "transaction confirmed",
				"signature", sig.String(),
				"slot", status.Slot,
				"compute_units", result.ComputeUnits,
			)
			return result, nil
		}
	}
}

// computeUnits fetches compute units consumed from the transaction meta.
// Failures here do not fail the submission; zero means unknown.
func (c *Client) computeUnits(ctx context.Context, sig solana.Signature) uint64 {
	maxVersion := uint64(0)
	start := time.Now()
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	c.recordCall("GetTransaction", err, start)
	if err != nil || out == nil || out.Meta == nil || out.Meta.ComputeUnitsConsumed == nil {
		return 0
	}
	return *out.Meta.ComputeUnitsConsumed
}

func (c *Client) recordCall(method string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, time.Since(start).Seconds())
}
