package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, "techsync.db", c.DatabasePath)
	assert.Equal(t, 15*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 3*time.Minute, c.SyncInterval)
	assert.Equal(t, 50, c.BatchSize)
	assert.Equal(t, 5, c.MaxAttempts)
	assert.Equal(t, 30*time.Second, c.HTTPTimeout)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, 15*time.Second, cfg.OnlineCheckInterval)
}
