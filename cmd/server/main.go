// Package main is the entry point for the F3 Invigorate web server.
//
// MAIN PACKAGE:
// main stays minimal. Its job is to:
//  1. Read configuration (defaults, optional file, environment)
//  2. Create dependencies (logger, database, token verifier)
//  3. Start the server
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// Administrative tasks (migrations without starting the server, database
// checks, the legacy import) live in the separate cmd/f3ctl binary.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/config"
	"github.com/f3-invigorate/invigorate/internal/database"
	"github.com/f3-invigorate/invigorate/internal/logger"
	"github.com/f3-invigorate/invigorate/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "optional config file (yaml, toml or json)")
	flag.Parse()

	// === 1. CONFIGURATION ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	log, closeLog := logger.New(cfg.Log)
	defer closeLog.Close()
	slog.SetDefault(log)

	// === 3. IDENTITY PROVIDER ===
	// Fail fast: a server that cannot verify tokens would answer every
	// signed-in request with an error.
	verifier, err := auth.NewFirebaseVerifier(cfg.Firebase)
	if err != nil {
		log.Error("identity provider misconfigured", slog.String("error", err.Error()))
		return err
	}

	// === 4. DATABASE ===
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Error("failed to open database", slog.String("error", err.Error()))
		return err
	}

	applied, err := database.MigrateUp(db, cfg.Database.Driver)
	if err != nil {
		database.Close(db)
		log.Error("failed to apply migrations", slog.String("error", err.Error()))
		return err
	}
	if applied > 0 {
		log.Info("applied migrations", slog.Int("count", applied))
	}

	// === 5. SERVER ===
	// From here the server owns db and closes it on shutdown.
	srv, err := server.New(cfg, db, verifier, log)
	if err != nil {
		database.Close(db)
		log.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
