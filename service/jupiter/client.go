package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Aggregator is the interface the execution engine consumes. It allows
// tests to mock the aggregator without an HTTP server.
type Aggregator interface {
	// Price returns the current USD spot price for a mint.
	Price(ctx context.Context, mint string) (float64, error)

	// GetQuote fetches a swap route quote. amount is in base units of the
	// input mint; slippageBps is the tolerance in basis points.
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error)

	// GetSwapTransaction builds the serialized swap transaction for a quote,
	// to be signed by userPublicKey.
	GetSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (*SwapResponse, error)
}

// Client is the HTTP client for the swap aggregator's quote/swap/price
// endpoints.
type Client struct {
	baseURL      string
	priceBaseURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates an aggregator client. If httpClient is nil a default
// with a 30s timeout is used.
func NewClient(baseURL, priceBaseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if priceBaseURL == "" {
		priceBaseURL = baseURL
	}
	return &Client{
		baseURL:      baseURL,
		priceBaseURL: priceBaseURL,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Price returns the current USD spot price for mint.
func (c *Client) Price(ctx context.Context, mint string) (float64, error) {
	u := fmt.Sprintf("%s/price?ids=%s", c.priceBaseURL, url.QueryEscape(mint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.errorFromResponse("price", resp)
	}

	var out priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode price response: %w", err)
	}

	entry, ok := out.Data[mint]
	if !ok {
		return 0, fmt.Errorf("no price data for mint %s", mint)
	}
	if entry.Price <= 0 {
		return 0, fmt.Errorf("non-positive price %v for mint %s", entry.Price, mint)
	}

	c.logger.Debug("fetched price", "mint", mint, "price", entry.Price)
	return entry.Price, nil
}

// GetQuote fetches a swap route quote.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	u := fmt.Sprintf("%s/quote?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse("quote", resp)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	c.logger.Debug("fetched quote",
		"input_mint", inputMint,
		"output_mint", outputMint,
		"in_amount", quote.InAmount,
		"out_amount", quote.OutAmount,
		"slippage_bps", slippageBps,
	)
	return &quote, nil
}

// GetSwapTransaction builds the serialized swap transaction for a quote.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (*SwapResponse, error) {
	reqBody := map[string]any{
		"quoteResponse":    quote,
		"userPublicKey":    userPublicKey,
		"wrapAndUnwrapSol": true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse("swap", resp)
	}

	var out SwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}
	if out.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response missing transaction")
	}

	return &out, nil
}

// errorFromResponse turns a non-200 response into an error carrying the
// status code so the retry layer can classify rate limits and gateway
// failures as transient.
func (c *Client) errorFromResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: server returned %d: %s", op, resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("%s: server returned %d", op, resp.StatusCode)
}
