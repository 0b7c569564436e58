// Command zetafin-purge removes every key the application owns from the
// configured local store and leaves foreign keys alone.
package main

import (
	"os"
	"strings"

	"zetafin/internal/backend"
	"zetafin/internal/cli"
	"zetafin/internal/config"
	"zetafin/internal/kvstore"
	"zetafin/internal/log"
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentPurge)

	if err := cfg.ValidateLocal(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return 1
	}

	store, cleanup, err := backend.CreateLocal(backend.Config{
		LocalStore:      backend.LocalStoreType(cfg.LocalStore),
		SQLiteDBPath:    cfg.SQLiteDBPath,
		LocalQuotaBytes: cfg.LocalQuotaBytes,
	}, logger)
	if err != nil {
		logger.Error("Failed to open local store", log.FieldError, err)
		return 1
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Failed to close local store", log.FieldError, err)
			exitCode = 1
		}
	}()

	removed, err := kvstore.PurgeAllKnownKeys(store)
	if err != nil {
		logger.Error("Purge failed", log.FieldError, err, log.FieldCount, len(removed))
		exitCode = 1
		return
	}
	logger.Info("Local data purged",
		log.FieldOperation, log.OpPurge,
		log.FieldCount, len(removed),
		"keys", strings.Join(removed, ","))
	return 0
}
