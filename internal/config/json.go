package config

import (
	"encoding/json"
	"os"
	"time"
)

// jsonConfig is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into
// the runtime Config.
type jsonConfig struct {
	DataDir          string `json:"data_dir"`
	CacheDir         string `json:"cache_dir"`
	MaxItems         int    `json:"max_items"`
	MaxSearchResults int    `json:"max_search_results"`
	CacheTTLHours    int    `json:"cache_ttl_hours"`
	LogLevel         string `json:"log_level"`
}

// parseJSON loads configuration values from the JSON file named by the
// REFNEXUS_CONFIG environment variable. If the variable is unset, no
// file is loaded. Zero-valued fields leave the existing Config value in
// place so the file may specify only the settings it overrides.
func parseJSON(config *Config) {
	path := os.Getenv("REFNEXUS_CONFIG")
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.DataDir != "" {
		config.DataDir = c.DataDir
	}
	if c.CacheDir != "" {
		config.CacheDir = c.CacheDir
	}
	if c.MaxItems > 0 {
		config.MaxItems = c.MaxItems
	}
	if c.MaxSearchResults > 0 {
		config.MaxSearchResults = c.MaxSearchResults
	}
	if c.CacheTTLHours > 0 {
		config.CacheTTL = time.Duration(c.CacheTTLHours) * time.Hour
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
}
