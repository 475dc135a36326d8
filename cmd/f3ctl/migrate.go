package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/f3-invigorate/invigorate/internal/database"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
	Long: `Apply, roll back or list the versioned schema migrations embedded in
the binary. The server applies pending migrations on startup; use these
commands to migrate ahead of a deploy or to undo one.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := database.MigrateUp(db, cfg.Database.Driver)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Applied %d migration(s)\n", n)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	Long: `Roll back the newest migrations. Rolling back the records migration
drops every attendance, effort, reflection and self-report row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := database.MigrateDown(db, cfg.Database.Driver, migrateSteps)
		if err != nil {
			return err
		}
		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "✗ Rolled back %d migration(s)\n", n)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and when they were applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		states, err := database.MigrationStatus(db, cfg.Database.Driver)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		faint := color.New(color.Faint)
		for _, s := range states {
			if s.Applied() {
				fmt.Fprintf(out, "%s  %s\n", padRight(s.ID, 24), faint.Sprint(s.AppliedAt.Format("2006-01-02 15:04:05")))
			} else {
				fmt.Fprintf(out, "%s  %s\n", padRight(s.ID, 24), color.New(color.FgYellow).Sprint("pending"))
			}
		}
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}
