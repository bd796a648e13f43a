package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1800, cfg.OrderTTLSeconds)
	assert.Equal(t, 3, cfg.OutboxMaxAttempts)
	assert.True(t, cfg.MockMode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int32(18), cfg.EVMTokenDecimals)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settlement.yaml")
	content := `
order_ttl_seconds: 3600
mock_mode: false
http_addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3600, cfg.OrderTTLSeconds)
	assert.False(t, cfg.MockMode)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, path, cfg.ConfigPath())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1800, cfg.OrderTTLSeconds)
}

func TestLoadRejectsNonPositiveOrderTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settlement.yaml")
	require.NoError(t, os.WriteFile(path, []byte("order_ttl_seconds: 0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		OrderTTLSeconds:       1800,
		OutboxPollIntervalMs:  500,
		ExpirySweepIntervalMs: 15000,
		RequestTimeoutSeconds: 10,
	}
	assert.Equal(t, 1800*time.Second, cfg.OrderTTL())
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval())
	assert.Equal(t, 15*time.Second, cfg.ExpirySweepInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
}
