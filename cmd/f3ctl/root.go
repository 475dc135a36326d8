package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/f3-invigorate/invigorate/internal/config"
	"github.com/f3-invigorate/invigorate/internal/database"
	"github.com/f3-invigorate/invigorate/internal/logger"
)

var (
	configPath string

	// Set by PersistentPreRunE for every subcommand.
	cfg      *config.Config
	log      *slog.Logger
	logClose io.Closer
	db       *gorm.DB
)

var rootCmd = &cobra.Command{
	Use:   "f3ctl",
	Short: "Operate the F3 Invigorate database",
	Long: `f3ctl runs the maintenance tasks that do not belong in the web server.

CONFIGURATION:

  Reads the same settings as the server: defaults, then --config, then the
  environment (DATABASE_DRIVER, DATABASE_DSN, LOG_LEVEL, ...).

COMMANDS:

  $ f3ctl migrate up                 # apply pending schema migrations
  $ f3ctl migrate down --steps 1     # roll back the newest migration
  $ f3ctl migrate status             # list migrations and when they ran
  $ f3ctl check-db                   # connectivity, tables, row counts, sample users
  $ f3ctl reconcile-legacy --legacy-dsn postgres://... --dry-run`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		log, logClose = logger.New(cfg.Log)

		db, err = database.Open(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", cfg.Database.Driver, err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db != nil {
			if err := database.Close(db); err != nil {
				return err
			}
			db = nil
		}
		if logClose != nil {
			return logClose.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
}
