// Package mcp implements the JSON-RPC 2.0 client for the MCP tool server that
// owns credit, subscription, and pool-metrics business logic.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/poolmind/poolmind/internal/utils"
)

var (
	ErrEmptyResult = errors.New("mcp: result contained no content")
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// RPCError is the JSON-RPC error object returned by the MCP server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mcp rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result *rpcResult `json:"result,omitempty"`
	Error  *RPCError  `json:"error,omitempty"`
}

// rpcResult wraps tool output: the payload proper is a JSON document embedded
// as text in the first content block.
type rpcResult struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Client talks JSON-RPC 2.0 to the MCP server.
type Client struct {
	baseURL string
	client  httpDoer
	logger  *zap.SugaredLogger
	nextID  atomic.Int64
}

func NewClient(cfg utils.MCPConfig, logger *zap.SugaredLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Call posts a single JSON-RPC request and returns the embedded JSON payload
// from the result's first content block.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call mcp server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(respBody))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("mcp server returned %d: %s", resp.StatusCode, snippet)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		c.logger.Warnw("mcp call returned error", "method", method, "code", rpcResp.Error.Code, "message", rpcResp.Error.Message)
		return nil, rpcResp.Error
	}

	if rpcResp.Result == nil || len(rpcResp.Result.Content) == 0 {
		return nil, ErrEmptyResult
	}

	text := strings.TrimSpace(rpcResp.Result.Content[0].Text)
	if text == "" {
		return nil, ErrEmptyResult
	}

	return json.RawMessage(text), nil
}

// Health checks the MCP server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call mcp health: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mcp health returned %d", resp.StatusCode)
	}

	return nil
}
