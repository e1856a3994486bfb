package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"timeshift-nft/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Ethereum JSON-RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordRPCCall(method, time.Since(start).Seconds(), err)
	}()

	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Call executes eth_call against the latest block.
func (c *HTTPClient) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	obj := map[string]interface{}{
		"to":   msg.To,
		"data": EncodeHex(msg.Data),
	}
	if msg.From != "" {
		obj["from"] = msg.From
	}

	var result string
	if err := c.call(ctx, "eth_call", []interface{}{obj, "latest"}, &result); err != nil {
		return nil, err
	}

	data, err := DecodeHex(result)
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	return data, nil
}

// SendTransaction submits a transaction through eth_sendTransaction.
// Signing is performed by the provider for the From account.
func (c *HTTPClient) SendTransaction(ctx context.Context, tx TxRequest) (string, error) {
	obj := map[string]interface{}{
		"from": tx.From,
		"to":   tx.To,
		"data": EncodeHex(tx.Data),
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		obj["value"] = EncodeBig(tx.Value)
	}

	var hash string
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{obj}, &hash); err != nil {
		return "", err
	}
	if hash == "" {
		return "", fmt.Errorf("eth_sendTransaction: empty transaction hash")
	}
	return hash, nil
}

// GetTransactionReceipt retrieves a receipt. Returns nil, nil if not yet mined.
func (c *HTTPClient) GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var result *getReceiptResult
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{hash}, &result); err != nil {
		return nil, err
	}

	if result == nil || result.BlockNumber == "" {
		// Transaction pending
		return nil, nil
	}

	receipt := &Receipt{
		TransactionHash: result.TransactionHash,
		Logs:            result.Logs,
	}

	var err error
	if receipt.BlockNumber, err = ParseHexUint64(result.BlockNumber); err != nil {
		return nil, fmt.Errorf("parse receipt block number: %w", err)
	}
	if receipt.Status, err = ParseHexUint64(result.Status); err != nil {
		return nil, fmt.Errorf("parse receipt status: %w", err)
	}
	if result.GasUsed != "" {
		if receipt.GasUsed, err = ParseHexUint64(result.GasUsed); err != nil {
			return nil, fmt.Errorf("parse receipt gas used: %w", err)
		}
	}

	return receipt, nil
}

// getReceiptResult is the raw RPC response for eth_getTransactionReceipt.
type getReceiptResult struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
	GasUsed         string `json:"gasUsed"`
	Logs            []Log  `json:"logs"`
}

// GetBalance retrieves the latest balance of an address in wei.
func (c *HTTPClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []interface{}{address, "latest"}, &result); err != nil {
		return nil, err
	}
	return ParseHexBig(result)
}

// ChainID retrieves the connected chain id.
func (c *HTTPClient) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", nil, &result); err != nil {
		return 0, err
	}
	return ParseHexUint64(result)
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes with special meaning.
const (
	// CodeExecutionReverted is returned by geth-compatible nodes for reverted eth_call.
	CodeExecutionReverted = 3
	// CodeUserRejected is the EIP-1193 code for a request rejected by the wallet user.
	CodeUserRejected = 4001
)

// IsRevert reports whether err is a contract execution revert.
func (e *RPCError) IsRevert() bool {
	return e.Code == CodeExecutionReverted || strings.Contains(strings.ToLower(e.Message), "revert")
}

// IsUserRejected reports whether the signer refused the request.
func (e *RPCError) IsUserRejected() bool {
	return e.Code == CodeUserRejected || strings.Contains(strings.ToLower(e.Message), "user rejected") ||
		strings.Contains(strings.ToLower(e.Message), "user denied")
}
