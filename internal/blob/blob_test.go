package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Put(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "artifacts"), "http://localhost:8080/artifacts/")
	require.NoError(t, err)

	url, err := s.Put(context.Background(), "excel/a b.xlsx", []byte("data"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/artifacts/excel/a%20b.xlsx", url)

	got, err := os.ReadFile(filepath.Join(dir, "artifacts", "excel", "a b.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "artifacts", "excel"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "http://x")
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../up.xlsx", "a/../../up", "."} {
		_, err := s.Put(context.Background(), key, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "http://x")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "k", []byte("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPStore_Put(t *testing.T) {
	var (
		gotPath, gotType string
		gotBody          []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL+"/bucket", "https://cdn.example/files", time.Second)
	url, err := s.Put(context.Background(), "excel/x.xlsx", []byte("payload"), "application/vnd.ms-excel")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/files/excel/x.xlsx", url)
	assert.Equal(t, "/bucket/excel/x.xlsx", gotPath)
	assert.Equal(t, "application/vnd.ms-excel", gotType)
	assert.Equal(t, "payload", string(gotBody))
}

func TestHTTPStore_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "", time.Second)
	_, err := s.Put(context.Background(), "k.xlsx", []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPStore_ClientErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "", time.Second)
	_, err := s.Put(context.Background(), "k.xlsx", []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
