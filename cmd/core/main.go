// Package main is the RefNexus engine entry point. It wires config,
// logging, storage, and the result cache, runs pending migrations, and
// reports the library state. The engine itself is consumed as a
// library; this binary exists for local development and smoke checks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kimhsiao/refnexus/internal/cache"
	"github.com/kimhsiao/refnexus/internal/config"
	"github.com/kimhsiao/refnexus/internal/db"
	"github.com/kimhsiao/refnexus/internal/library"
	"github.com/kimhsiao/refnexus/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	cfg := config.LoadConfig()
	logging.Init(os.Stdout, logging.LogLevel(cfg.LogLevel))
	log := logging.Get()

	fmt.Printf("RefNexus Core v%s\n", Version)

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		log.Error("failed to open database", err)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Migrate(); err != nil {
		log.Error("migration failed", err)
		os.Exit(1)
	}
	version, err := migrator.CurrentVersion()
	if err != nil {
		log.Error("schema version lookup failed", err)
		os.Exit(1)
	}

	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		log.Error("failed to open result cache", err)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)
	_ = library.NewService(repo, store, cfg)

	ctx := context.Background()
	count, err := repo.CountItems(ctx)
	if err != nil {
		log.Error("item count failed", err)
		os.Exit(1)
	}

	log.Info("engine ready", map[string]interface{}{
		"schema_version": version,
		"items":          count,
		"data_dir":       cfg.DataDir,
		"cache_dir":      cfg.CacheDir,
	})
}
