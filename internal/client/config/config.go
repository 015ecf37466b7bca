package config

import "time"

// Config holds runtime settings for the technician console.
//
// Units: the intervals and HTTPTimeout are time.Durations
// (e.g., 15*time.Second).
type Config struct {
	ServerURL           string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	BatchSize           int
	MaxAttempts         int
	HTTPTimeout         time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "techsync.db"
	c.OnlineCheckInterval = 15 * time.Second
	c.SyncInterval = 3 * time.Minute
	c.BatchSize = 50
	c.MaxAttempts = 5
	c.HTTPTimeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
