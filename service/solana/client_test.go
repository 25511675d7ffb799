package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	balance     uint64
	tokenAmount string
	blockhash   solana.Hash
	sendSig     solana.Signature
	sendErr     error
	statusQueue []*rpc.SignatureStatusesResult
	statusCalls int
	txResult    *rpc.GetTransactionResult
	balanceErr  error
	tokenBalErr error
}

func (m *mockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return &rpc.GetBalanceResult{Value: m.balance}, nil
}

func (m *mockRPCClient) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	if m.tokenBalErr != nil {
		return nil, m.tokenBalErr
	}
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: m.tokenAmount, Decimals: 6},
	}, nil
}

func (m *mockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: m.blockhash},
	}, nil
}

func (m *mockRPCClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	return m.sendSig, nil
}

func (m *mockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	var status *rpc.SignatureStatusesResult
	if m.statusCalls < len(m.statusQueue) {
		status = m.statusQueue[m.statusCalls]
	} else if len(m.statusQueue) > 0 {
		status = m.statusQueue[len(m.statusQueue)-1]
	}
	m.statusCalls++
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{status},
	}, nil
}

func (m *mockRPCClient) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if m.txResult == nil {
		return nil, errors.New("not found")
	}
	return m.txResult, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(mock, nil, logger)
	c.confirmPollInterval = time.Millisecond
	return c
}

func TestSOLBalance(t *testing.T) {
	mock := &mockRPCClient{balance: 2_500_000_000}
	client := newTestClient(mock)

	got, err := client.SOLBalance(context.Background(), solana.MustPublicKeyFromBase58("11111111111111111111111111111111"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), got)
}

func TestTokenBalance_ParsesBaseUnits(t *testing.T) {
	mock := &mockRPCClient{tokenAmount: "123456789"}
	client := newTestClient(mock)

	owner := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	got, err := client.TokenBalance(context.Background(), owner, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), got)
}

func TestSubmitAndConfirm_WaitsForConfirmation(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	cu := uint64(142_000)
	mock := &mockRPCClient{
		sendSig: sig,
		statusQueue: []*rpc.SignatureStatusesResult{
			nil, // not yet visible
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed, Slot: 100},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed, Slot: 101},
		},
		txResult: &rpc.GetTransactionResult{
			Meta: &rpc.TransactionMeta{ComputeUnitsConsumed: &cu},
		},
	}
	client := newTestClient(mock)

	result, err := client.SubmitAndConfirm(context.Background(), &solana.Transaction{})
	require.NoError(t, err)
	assert.Equal(t, sig, result.Signature)
	assert.Equal(t, uint64(101), result.Slot)
	assert.Equal(t, cu, result.ComputeUnits)
	assert.GreaterOrEqual(t, mock.statusCalls, 3)
}

func TestSubmitAndConfirm_OnChainFailure(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	mock := &mockRPCClient{
		sendSig: sig,
		statusQueue: []*rpc.SignatureStatusesResult{
			{Err: map[string]any{"InstructionError": []any{0, "Custom"}}, Slot: 100},
		},
	}
	client := newTestClient(mock)

	_, err := client.SubmitAndConfirm(context.Background(), &solana.Transaction{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed on chain")
}

func TestSubmitAndConfirm_ContextDeadline(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	mock := &mockRPCClient{
		sendSig: sig,
		statusQueue: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed, Slot: 100},
		},
	}
	client := newTestClient(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.SubmitAndConfirm(ctx, &solana.Transaction{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWallet_SignAndPublicKey(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w, err := NewWalletFromBase58(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey())
}
