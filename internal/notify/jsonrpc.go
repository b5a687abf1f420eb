// Package notify delivers JSON-RPC 2.0 event notifications to webhook
// endpoints.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// RPCClient posts JSON-RPC requests and retries 5xx and transport errors
// with exponential backoff. 4xx responses are not retried.
type RPCClient struct {
	http       *resty.Client
	nextID     atomic.Int64
	maxRetries uint64
	baseDelay  time.Duration
}

func NewRPCClient(maxRetries int, baseDelay, timeout time.Duration) *RPCClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RPCClient{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		maxRetries: uint64(maxRetries),
		baseDelay:  baseDelay,
	}
}

// Call sends method with params to endpoint.
func (c *RPCClient) Call(ctx context.Context, endpoint, method string, params any) (*Response, error) {
	req := Request{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.maxRetries), ctx)

	var (
		out      *Response
		attempts int
	)
	err := backoff.Retry(func() error {
		attempts++
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			Post(endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("http request: %w", err)
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("server error: %d", resp.StatusCode())
		}
		if resp.StatusCode() != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.String()))
		}
		var r Response
		if err := json.Unmarshal(resp.Body(), &r); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal rpc response: %w", err))
		}
		out = &r
		return nil
	}, policy)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("rpc %s failed after %d attempts: %w", method, attempts, err)
	}
	return out, nil
}
