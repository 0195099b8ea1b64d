package config

import (
	"flag"
	"os"
	"time"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   data directory
//	-k string   cache directory
//	-m int      membership set capacity (max_items)
//	-n int      search candidate cap
//	-t int      derived-asset cache TTL, hours
//	-l string   minimum log level
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("refnexus", flag.ContinueOnError)

	fs.StringVar(&config.DataDir, "d", config.DataDir, "data directory")
	fs.StringVar(&config.CacheDir, "k", config.CacheDir, "cache directory")
	fs.IntVar(&config.MaxItems, "m", config.MaxItems, "membership set capacity")
	fs.IntVar(&config.MaxSearchResults, "n", config.MaxSearchResults, "search candidate cap")
	ttlHours := fs.Int("t", int(config.CacheTTL.Hours()), "derived-asset cache TTL (hours)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "minimum log level")

	if err := fs.Parse(os.Args[1:]); err != nil {
		panic(err)
	}

	config.CacheTTL = time.Duration(*ttlHours) * time.Hour
}
