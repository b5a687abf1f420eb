package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 5, cfg.DBConnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.ExportTimeout)
	assert.Equal(t, 5, cfg.BreakerMaxFailures)
	assert.Equal(t, "./artifacts", cfg.BlobDir)
	assert.Empty(t, cfg.WebhookEndpoints)
	assert.Equal(t, 3, cfg.WebhookRetryMax)
	assert.Equal(t, 8, cfg.InsertConcurrency)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SHEETSTORE_PORT", "9090")
	t.Setenv("SHEETSTORE_LOG_LEVEL", "debug")
	t.Setenv("SHEETSTORE_DATABASE_URL", "postgres://localhost/sheets")
	t.Setenv("SHEETSTORE_EXPORT_TIMEOUT", "2s")
	t.Setenv("SHEETSTORE_WEBHOOK_ENDPOINTS", "http://a/rpc,http://b/rpc")
	t.Setenv("SHEETSTORE_INSERT_CONCURRENCY", "2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.False(t, cfg.UseMemoryStore())
	assert.Equal(t, 2*time.Second, cfg.ExportTimeout)
	assert.Equal(t, []string{"http://a/rpc", "http://b/rpc"}, cfg.WebhookEndpoints)
	assert.Equal(t, 2, cfg.InsertConcurrency)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SHEETSTORE_QUERY_TIMEOUT", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("SHEETSTORE_INSERT_CONCURRENCY", "0")
	_, err := Load("")
	assert.ErrorContains(t, err, "insert concurrency")
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHEETSTORE_PORT=7070\nSHEETSTORE_BLOB_DIR=/data\n"), 0o600))
	t.Setenv("SHEETSTORE_BLOB_DIR", "/override")
	t.Cleanup(func() { os.Unsetenv("SHEETSTORE_PORT") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "/override", cfg.BlobDir)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, Config{LogLevel: in}.SlogLevel(), in)
	}
}
