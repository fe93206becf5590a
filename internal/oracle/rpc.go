/*

Minimal Ethereum JSON-RPC client used for read-only contract calls. Only
eth_call is needed: rate queries against the interest-rate-model contract
and reserve/price reads for the data fetcher. The first endpoint is
primary and the rest are fallbacks tried in order.

*/

package oracle

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

var ErrNoEndpoints = errors.New("rpc client requires at least one endpoint URL")

// RPCClient is a minimal JSON-RPC client for eth_call operations.
type RPCClient struct {
	urls       []string
	httpClient *http.Client
	requestID  atomic.Int64
}

// NewRPCClient creates a client over the given endpoint URLs.
func NewRPCClient(urls ...string) (*RPCClient, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	return &RPCClient{
		urls: urls,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EthCall executes a read-only contract call and returns the raw result
// bytes. Every configured endpoint is tried before giving up.
func (c *RPCClient) EthCall(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	params := []interface{}{
		map[string]string{
			"to":   to,
			"data": "0x" + hex.EncodeToString(calldata),
		},
		"latest",
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_call",
		Params:  params,
		ID:      c.requestID.Add(1),
	}

	var lastErr error
	for _, url := range c.urls {
		result, err := c.doRequest(ctx, url, req)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}

func (c *RPCClient) doRequest(ctx context.Context, url string, req rpcRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var hexResult string
	if err := json.Unmarshal(rpcResp.Result, &hexResult); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}

	hexResult = strings.TrimPrefix(hexResult, "0x")
	return hex.DecodeString(hexResult)
}
