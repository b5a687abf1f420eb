package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, fn func(req Request) (int, *Response)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, resp := fn(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if resp != nil {
			_ = json.NewEncoder(w).Encode(resp)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCClient_Call(t *testing.T) {
	srv := rpcServer(t, func(req Request) (int, *Response) {
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "ping", req.Method)
		return http.StatusOK, &Response{JSONRPC: "2.0", Result: json.RawMessage(`"pong"`), ID: req.ID}
	})

	c := NewRPCClient(0, time.Millisecond, time.Second)
	resp, err := c.Call(context.Background(), srv.URL, "ping", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `"pong"`, string(resp.Result))
	assert.Nil(t, resp.Error)
}

func TestRPCClient_IDsIncrease(t *testing.T) {
	var ids []int64
	var mu sync.Mutex
	srv := rpcServer(t, func(req Request) (int, *Response) {
		mu.Lock()
		ids = append(ids, req.ID)
		mu.Unlock()
		return http.StatusOK, &Response{JSONRPC: "2.0", ID: req.ID}
	})

	c := NewRPCClient(0, time.Millisecond, time.Second)
	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), srv.URL, "m", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestRPCClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, func(req Request) (int, *Response) {
		if calls.Add(1) < 3 {
			return http.StatusServiceUnavailable, nil
		}
		return http.StatusOK, &Response{JSONRPC: "2.0", ID: req.ID}
	})

	c := NewRPCClient(3, time.Millisecond, time.Second)
	_, err := c.Call(context.Background(), srv.URL, "m", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRPCClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, func(Request) (int, *Response) {
		calls.Add(1)
		return http.StatusInternalServerError, nil
	})

	c := NewRPCClient(2, time.Millisecond, time.Second)
	_, err := c.Call(context.Background(), srv.URL, "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRPCClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, func(Request) (int, *Response) {
		calls.Add(1)
		return http.StatusBadRequest, nil
	})

	c := NewRPCClient(5, time.Millisecond, time.Second)
	_, err := c.Call(context.Background(), srv.URL, "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRPCClient_CancelledContext(t *testing.T) {
	srv := rpcServer(t, func(Request) (int, *Response) {
		return http.StatusInternalServerError, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewRPCClient(5, time.Hour, time.Second)
	_, err := c.Call(ctx, srv.URL, "m", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRPCError(t *testing.T) {
	err := &RPCError{Code: -32601, Message: "method not found"}
	assert.Equal(t, "jsonrpc error -32601: method not found", err.Error())
}

func TestNotifier_ExportCreated(t *testing.T) {
	var (
		mu       sync.Mutex
		received []ExportCreatedParams
	)
	handler := func(req Request) (int, *Response) {
		assert.Equal(t, MethodExportCreated, req.Method)
		raw, _ := json.Marshal(req.Params)
		var p ExportCreatedParams
		_ = json.Unmarshal(raw, &p)
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		return http.StatusOK, &Response{JSONRPC: "2.0", ID: req.ID}
	}
	a := rpcServer(t, handler)
	b := rpcServer(t, handler)

	n := NewNotifier([]string{a.URL, b.URL}, NewRPCClient(0, time.Millisecond, time.Second), slog.New(slog.DiscardHandler))

	url := "https://files/x.xlsx"
	e := sheet.Export{
		ID: uuid.New(), SnapshotID: uuid.New(), Provider: sheet.ProviderExcel,
		URL: &url, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	sheetID := uuid.NewString()
	n.ExportCreated(sheetID, "alice", e)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))

	require.Len(t, received, 2)
	for _, p := range received {
		assert.Equal(t, e.ID.String(), p.ExportID)
		assert.Equal(t, sheetID, p.SheetID)
		assert.Equal(t, "alice", p.OwnerID)
		assert.Equal(t, url, *p.URL)
		assert.Nil(t, p.UID)
	}
}

func TestNotifier_NoEndpoints(t *testing.T) {
	n := NewNotifier(nil, NewRPCClient(0, time.Millisecond, time.Second), slog.New(slog.DiscardHandler))
	n.ExportCreated("s", "o", sheet.Export{})
	assert.NoError(t, n.Wait(context.Background()))
}

func TestNotifier_FailuresAreSwallowed(t *testing.T) {
	srv := rpcServer(t, func(req Request) (int, *Response) {
		return http.StatusOK, &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: 1, Message: "nope"}}
	})
	n := NewNotifier([]string{srv.URL, "http://127.0.0.1:1"}, NewRPCClient(0, time.Millisecond, time.Second), slog.New(slog.DiscardHandler))

	n.ExportCreated("s", "o", sheet.Export{ID: uuid.New()})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, n.Wait(ctx))
}
