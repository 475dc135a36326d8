package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/f3-invigorate/invigorate/internal/config"
	"github.com/f3-invigorate/invigorate/internal/database"
	"github.com/f3-invigorate/invigorate/internal/legacy"
)

var (
	legacyDSN    string
	legacyDriver string
	dryRun       bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile-legacy",
	Short: "Import athletes, HIMs and their records from the legacy database",
	Long: `Copy people and records from the pre-unification schema into this one.

MAPPING:

  athletes and f3_hims rows become users, merged on firebase_id. Anyone
  found in f3_hims is a HIM. Record rows keep their legacy ids, so running
  the import twice copies nothing the second time.

ORPHANS:

  A record whose owner is in neither people table is skipped and counted.

SAFETY:

  The whole import runs in one transaction. --dry-run performs it and rolls
  back, so the report shows exactly what a real run would write.

EXAMPLES:

  $ f3ctl reconcile-legacy --legacy-dsn "postgres://old-host/f3" --dry-run
  $ f3ctl reconcile-legacy --legacy-driver sqlite --legacy-dsn backup.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if legacyDSN == "" {
			return errors.New("--legacy-dsn is required")
		}

		if _, err := database.MigrateUp(db, cfg.Database.Driver); err != nil {
			return fmt.Errorf("migrating destination: %w", err)
		}

		src, err := database.Open(config.DatabaseConfig{
			Driver: legacyDriver,
			DSN:    legacyDSN,
		}, log)
		if err != nil {
			return fmt.Errorf("connecting to legacy database: %w", err)
		}
		defer database.Close(src)

		report, err := legacy.NewReconciler(src, db, log).Run(cmd.Context(), legacy.Options{DryRun: dryRun})
		if err != nil {
			return err
		}

		printReport(cmd, report)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&legacyDSN, "legacy-dsn", "", "connection string of the legacy database (required)")
	reconcileCmd.Flags().StringVar(&legacyDriver, "legacy-driver", database.DriverPostgres, "legacy database driver: sqlite, postgres or mysql")
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the import and roll it back")

	rootCmd.AddCommand(reconcileCmd)
}

func printReport(cmd *cobra.Command, report *legacy.Report) {
	out := cmd.OutOrStdout()
	faint := color.New(color.Faint)

	if report.DryRun {
		color.New(color.FgYellow).Fprintln(out, "Dry run: nothing was written.")
	}

	fmt.Fprintf(out, "People   %d athletes, %d HIMs → %d users\n", report.Athletes, report.HIMs, report.Users)
	for _, t := range report.Tables {
		line := fmt.Sprintf("%s read %d, imported %d", padRight(t.Table, 22), t.Read, t.Imported)
		if t.Orphaned > 0 {
			fmt.Fprintf(out, "  %s, %s\n", line, color.New(color.FgRed).Sprintf("%d orphaned", t.Orphaned))
			continue
		}
		fmt.Fprintf(out, "  %s\n", line)
	}

	if !report.DryRun {
		color.New(color.FgGreen).Fprintln(out, "✓ Legacy import complete")
	} else {
		faint.Fprintln(out, "Run again without --dry-run to apply.")
	}
}
