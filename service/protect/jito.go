package protect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// JitoClient submits single-transaction bundles to a Jito-style block
// engine over its JSON-RPC endpoint.
type JitoClient struct {
	baseURL    string
	authKey    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewJitoClient creates a bundle relay client. If httpClient is nil a
// default with a 15s timeout is used.
func NewJitoClient(baseURL, authKey string, httpClient *http.Client, logger *slog.Logger) *JitoClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &JitoClient{
		baseURL:    baseURL,
		authKey:    authKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type bundleRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  [][]string `json:"params"`
}

type bundleResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendBundle submits the signed transaction as a one-element bundle and
// returns the relay's bundle identifier.
func (c *JitoClient) SendBundle(ctx context.Context, tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serialize transaction: %w", err)
	}

	reqBody := bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{{base58.Encode(raw)}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal bundle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/bundles", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create bundle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authKey != "" {
		req.Header.Set("x-jito-auth", c.authKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bundle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("bundle relay returned %d: %s", resp.StatusCode, snippet)
	}

	var out bundleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode bundle response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("bundle relay error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == "" {
		return "", fmt.Errorf("bundle relay returned empty bundle id")
	}

	c.logger.DebugContext(ctx, "bundle accepted", "bundle_id", out.Result)
	return out.Result, nil
}
