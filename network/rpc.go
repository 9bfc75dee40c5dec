package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	maxResponseBytes = 32 << 20
	requestTimeout   = 30 * time.Second
	bodySnippet      = 512
)

// RPCClient speaks JSON-RPC 1.0 to a ledger node. The typed methods in
// node.go are thin wrappers around Call.
type RPCClient struct {
	cfg  RPCConfig
	http *http.Client
	seq  atomic.Int64
}

type request struct {
	Version string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error reported by the node rather than the transport.
// Code -5 matches ErrTxNotFound.
type RPCError struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("network: %s: node error %d: %s", e.Method, e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	return target == ErrTxNotFound && e.Code == codeTxNotFound
}

// NewRPCClient returns a client for the node at cfg.URL. Basic auth is sent
// when cfg.User is set.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	return &RPCClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Call runs method with params and decodes the result into result, which
// may be nil to discard it. Transport problems and non-JSON HTTP errors are
// ErrConnectionFailed, 401/403 is ErrAuthFailed, undecodable replies are
// ErrInvalidResponse and node-side failures are *RPCError.
func (c *RPCClient) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	req := request{Version: "1.0", ID: c.seq.Add(1), Method: method, Params: params}

	status, body, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	return decodeResponse(req, status, body, result)
}

func (c *RPCClient) post(ctx context.Context, req request) (int, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("network: encode %s: %w", req.Method, err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("network: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.cfg.User != "" {
		hreq.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return 0, nil, fmt.Errorf("%w: HTTP %d", ErrAuthFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %w", ErrConnectionFailed, err)
	}
	return resp.StatusCode, body, nil
}

// decodeResponse judges a reply. Nodes send RPC errors as HTTP 500 with a
// JSON body, so the body is looked at before the status code.
func decodeResponse(req request, status int, body []byte, result any) error {
	var resp response
	jsonErr := json.Unmarshal(body, &resp)
	if jsonErr == nil && resp.Error != nil {
		resp.Error.Method = req.Method
		return resp.Error
	}

	if status < 200 || status > 299 {
		if len(body) > bodySnippet {
			body = body[:bodySnippet]
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, status, body)
	}
	if jsonErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, req.Method, jsonErr)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("%w: %s: reply id %d for request %d", ErrInvalidResponse, req.Method, resp.ID, req.ID)
	}

	if result == nil || resp.Result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%w: %s result: %w", ErrInvalidResponse, req.Method, err)
	}
	return nil
}
