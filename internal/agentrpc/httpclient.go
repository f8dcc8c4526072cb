package agentrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// Client calls a typecache agent RPC server.
type Client struct {
	baseURL   string
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the timeout of unary calls. Event streams are not
// subject to it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Merge sends type descriptions via types/merge.
func (c *Client) Merge(ctx context.Context, types ...*classcache.TypeDescription) (*MergeResponse, error) {
	var resp MergeResponse
	if err := c.call(ctx, MethodMerge, MergeRequest{Types: types}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Analyze merges a class and returns its instrumentation via types/analyze.
func (c *Client) Analyze(ctx context.Context, desc *classcache.TypeDescription) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.call(ctx, MethodAnalyze, AnalyzeRequest{Type: desc}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Find queries cached types via types/find.
func (c *Client) Find(ctx context.Context, req FindRequest) (*FindResponse, error) {
	var resp FindResponse
	if err := c.call(ctx, MethodFind, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Results lists instrumentation definitions.
func (c *Client) Results(ctx context.Context) (*ResultsResponse, error) {
	var resp ResultsResponse
	if err := c.call(ctx, MethodResults, ResultsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResultsByHash lists instrumentation definitions keyed by class hash.
func (c *Client) ResultsByHash(ctx context.Context) (*ResultsByHashResponse, error) {
	var resp ResultsByHashResponse
	if err := c.call(ctx, MethodResultsByHash, ResultsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Subscribe opens the /events stream. It returns once the server has
// registered the subscription; the channel closes when ctx ends or the
// server stops.
func (c *Client) Subscribe(ctx context.Context) (<-chan CacheEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("agentrpc: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentrpc: subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("agentrpc: subscribe: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ReadEvents(ctx, resp.Body), nil
}

func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("agentrpc: marshal params: %w", err)
	}

	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.nextID(),
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		return fmt.Errorf("agentrpc: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agentrpc: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("agentrpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agentrpc: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agentrpc: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("agentrpc: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("agentrpc: decode result: %w", err)
		}
	}
	return nil
}

// RPCError is a JSON-RPC error returned by the server.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("agentrpc: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("agentrpc: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}
