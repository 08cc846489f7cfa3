package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/log"
	"ledger/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage the SQLite schema",
		Long: `Apply pending migrations (up, the default), revert all of them (down)
or show the applied schema version.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE:      runMigrate,
	}
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if app.Config.DataBackend != "sqlite" {
		return errSQLiteOnly
	}
	dbPath := app.Config.SQLiteDBPath
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	logger := app.Logger.WithComponent(log.ComponentStorage)
	out := cmd.OutOrStdout()

	switch action {
	case "up":
		if err := storage.RunMigrations(dbPath); err != nil {
			return err
		}
	case "down":
		if err := storage.RollbackMigrations(dbPath); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}

	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	logger.InfoContext(cmd.Context(), "Migration finished",
		log.FieldOperation, log.OpMigrate, "action", action, "version", version, "dirty", dirty)

	status := fmt.Sprintf("schema version %d", version)
	if dirty {
		status += " (dirty)"
	}
	fmt.Fprintln(out, labelStyle.Render(dbPath)+" "+status)
	return nil
}
