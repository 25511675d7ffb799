package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solMint = "So11111111111111111111111111111111111111112"

func TestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price", r.URL.Path)
		assert.Equal(t, solMint, r.URL.Query().Get("ids"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				solMint: map[string]any{"id": solMint, "price": 147.25},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.Client(), nil)
	price, err := c.Price(context.Background(), solMint)
	require.NoError(t, err)
	assert.Equal(t, 147.25, price)
}

func TestPrice_MissingMint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.Client(), nil)
	_, err := c.Price(context.Background(), solMint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no price data")
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
		assert.Equal(t, "100", r.URL.Query().Get("slippageBps"))
		json.NewEncoder(w).Encode(Quote{
			InputMint:            solMint,
			InAmount:             "1000000000",
			OutputMint:           "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			OutAmount:            "147250000",
			OtherAmountThreshold: "145777500",
			SlippageBps:          100,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.Client(), nil)
	quote, err := c.GetQuote(context.Background(), solMint, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", 1_000_000_000, 100)
	require.NoError(t, err)

	out, err := quote.OutAmountUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(147_250_000), out)

	threshold, err := quote.OtherAmountThresholdUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(145_777_500), threshold)
}

func TestGetQuote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream unavailable"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.Client(), nil)
	_, err := c.GetQuote(context.Background(), solMint, solMint, 1, 50)
	require.Error(t, err)
	// 502 in the message keeps the retry layer's transient classification working.
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestGetSwapTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wallet-pubkey", body["userPublicKey"])
		assert.NotNil(t, body["quoteResponse"])

		json.NewEncoder(w).Encode(SwapResponse{
			SwapTransaction:      "AQAAAA==",
			LastValidBlockHeight: 250000000,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.Client(), nil)
	out, err := c.GetSwapTransaction(context.Background(), &Quote{InAmount: "1"}, "wallet-pubkey")
	require.NoError(t, err)
	assert.Equal(t, "AQAAAA==", out.SwapTransaction)
}

func TestGetSwapTransaction_MissingTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.Client(), nil)
	_, err := c.GetSwapTransaction(context.Background(), &Quote{}, "wallet-pubkey")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing transaction")
}
