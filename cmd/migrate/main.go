package main

import (
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/openpulse/pulse-backend-go/internal/config"
	"github.com/openpulse/pulse-backend-go/pkg/logger"
)

// Standalone migration tool. The server applies pending migrations on
// startup; this binary exists for rollbacks and for inspecting schema state
// without starting the server. Paths come from the same config the server
// reads, overridable by positional arguments.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	migrationsPath := cfg.Database.MigrationsPath
	databaseURL := "sqlite3://" + cfg.Database.Path
	if len(os.Args) > 2 {
		migrationsPath = os.Args[2]
	}
	if len(os.Args) > 3 {
		databaseURL = os.Args[3]
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Info("Migrations applied")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Info("Migrations rolled back")
	case "version":
		version, dirty, err := m.Version()
		if err != nil && err != migrate.ErrNilVersion {
			log.Fatalf("Failed to read schema version: %v", err)
		}
		log.WithField("dirty", dirty).Infof("Schema version %d", version)
	default:
		log.Fatalf("Unknown command %q: use up, down or version", command)
	}
}
