package main

import (
	"database/sql"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	sqlm "aigist/internal/storage/sqlite"
)

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and migrate the mirror database schema",
	}
	cmd.AddCommand(dbStatusCmd(), dbMigrateCmd(), dbRollbackCmd())
	return cmd
}

// openMirrorDB opens the configured database without migrating it.
func openMirrorDB() (*sql.DB, string, error) {
	cfg, err := clientConfig()
	if err != nil {
		return nil, "", err
	}
	db, err := sqlm.Open(cfg.DBPath)
	if err != nil {
		return nil, "", err
	}
	return db, cfg.DBPath, nil
}

func dbStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, path, err := openMirrorDB()
			if err != nil {
				return err
			}
			defer db.Close()
			m := sqlm.Manager{}
			v, err := m.Version(cmd.Context(), db)
			if err != nil {
				return err
			}
			mark := color.GreenString("✓")
			if v != m.Latest() {
				mark = color.YellowString("!")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: schema v%d (latest v%d)\n", mark, path, v, m.Latest())
			return nil
		},
	}
}

func dbMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, path, err := openMirrorDB()
			if err != nil {
				return err
			}
			defer db.Close()
			m := sqlm.Manager{}
			if err := m.UpToLatest(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: schema v%d\n", color.GreenString("✓"), path, m.Latest())
			return nil
		},
	}
}

func dbRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last applied schema migration",
		Long:  "Roll back the last applied schema migration. Rolling back v1 drops the mirror table and its rows.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, path, err := openMirrorDB()
			if err != nil {
				return err
			}
			defer db.Close()
			m := sqlm.Manager{}
			from, err := m.Version(cmd.Context(), db)
			if err != nil {
				return err
			}
			if err := m.DownOne(cmd.Context(), db); err != nil {
				return fmt.Errorf("rollback v%d: %w", from, err)
			}
			to, err := m.Version(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: schema v%d -> v%d\n", color.GreenString("✓"), path, from, to)
			return nil
		},
	}
}
