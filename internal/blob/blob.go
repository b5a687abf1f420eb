// Package blob stores rendered export artifacts and hands back a URL they
// can be downloaded from.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// Store persists an artifact under key and returns its public URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return clean, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + (&url.URL{Path: key}).EscapedPath()
}

// FileStore writes artifacts below a local directory. The api package serves
// that directory under BaseURL.
type FileStore struct {
	Dir     string
	BaseURL string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{Dir: dir, BaseURL: baseURL}, nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	// Write then rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return joinURL(s.BaseURL, key), nil
}

// HTTPStore uploads artifacts with an HTTP PUT to an object store endpoint
// (S3/GCS presigned prefix, a minio bucket, or anything PUT-compatible).
type HTTPStore struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPStore uploads to uploadURL/<key> and reports publicURL/<key>.
// When publicURL is empty the upload URL is reported. Each Put is a single
// attempt; a failed upload fails the export.
func NewHTTPStore(uploadURL, publicURL string, timeout time.Duration) *HTTPStore {
	if publicURL == "" {
		publicURL = uploadURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(uploadURL, "/")).
		SetTimeout(timeout)
	return &HTTPStore{client: c, baseURL: publicURL}
}

func (s *HTTPStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put("/" + (&url.URL{Path: key}).EscapedPath())
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload %s: status %d: %s", key, resp.StatusCode(), resp.String())
	}
	return joinURL(s.baseURL, key), nil
}
