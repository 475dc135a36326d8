package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/f3-invigorate/invigorate/internal/database"
)

var checkDBCmd = &cobra.Command{
	Use:   "check-db",
	Short: "Check connectivity, tables, row counts and recent users",
	Long: `Connect with the configured settings and print what is there.

A missing table is reported, not treated as an error: "users table
missing" usually means migrations never ran against this database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := database.Inspect(cmd.Context(), db, cfg.Database.Driver)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		faint := color.New(color.Faint)
		bold := color.New(color.Bold)

		color.New(color.FgGreen).Fprintf(out, "✓ Connected to %s\n", report.Driver)
		fmt.Fprintf(out, "  %s\n\n", faint.Sprint(report.Version))

		bold.Fprintln(out, "Tables")
		counted := make(map[string]int64, len(report.Counts))
		for _, c := range report.Counts {
			counted[c.Table] = c.Rows
		}
		for _, table := range database.AppTables() {
			rows, ok := counted[table]
			if !ok {
				color.New(color.FgRed).Fprintf(out, "  %s missing\n", padRight(table, 22))
				continue
			}
			fmt.Fprintf(out, "  %s %d\n", padRight(table, 22), rows)
		}
		fmt.Fprintf(out, "  %s\n\n", faint.Sprintf("%d table(s) in total", len(report.Tables)))

		bold.Fprintln(out, "Migrations")
		pending := 0
		for _, m := range report.Migrations {
			if !m.Applied() {
				pending++
			}
		}
		if pending > 0 {
			color.New(color.FgYellow).Fprintf(out, "  %d of %d pending; run 'f3ctl migrate up'\n\n", pending, len(report.Migrations))
		} else {
			fmt.Fprintf(out, "  all %d applied\n\n", len(report.Migrations))
		}

		bold.Fprintln(out, "Recent users")
		if len(report.RecentUsers) == 0 {
			fmt.Fprintln(out, "  none")
		}
		for _, u := range report.RecentUsers {
			fmt.Fprintf(out, "  %s %s %s %s\n",
				faint.Sprint(u.ID),
				padRight(string(u.Role), 8),
				padRight(u.DisplayName(), 24),
				faint.Sprint(u.CreatedAt.Format("2006-01-02")),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkDBCmd)
}
