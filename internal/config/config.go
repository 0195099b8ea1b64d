// Package config handles runtime configuration for the library engine,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the engine.
//
// Fields:
//   - DataDir: directory holding the SQLite database file.
//   - CacheDir: root directory of the file-backed result cache.
//   - MaxItems: capacity of each clipboard / project membership set.
//   - MaxSearchResults: global cap on candidate ids a cacheable search
//     may produce before pagination.
//   - CacheTTL: lifetime of TTL-disciplined cache contexts (derived
//     assets); search results are generational and ignore it.
//   - LogLevel: minimum level emitted by the structured logger.
type Config struct {
	DataDir          string
	CacheDir         string
	MaxItems         int
	MaxSearchResults int
	CacheTTL         time.Duration
	LogLevel         string
}

// LoadDefaults populates Config with sensible development defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "./data"
	c.CacheDir = "./data/cache"
	c.MaxItems = 500
	c.MaxSearchResults = 2000
	c.CacheTTL = 24 * time.Hour
	c.LogLevel = "INFO"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
