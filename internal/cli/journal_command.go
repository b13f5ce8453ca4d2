// filepath: internal/cli/journal_command.go
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/journal"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
)

func NewJournalCommand(globalOptions *GlobalOptions) *cobra.Command {

	var journalCmd = &cobra.Command{
		Use:   "journal",
		Short: "Operation journal tools",
		Long:  `Manage the SQLite database that records every mutating operation.`,
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Journal schema migration tools",
		Long:  `Manage journal schema versions. Use subcommands 'up', 'down', or 'status'.`,
	}

	var upCmd = &cobra.Command{
		Use:   "up",
		Short: "Migrate the journal to the most recent version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, globalOptions, "up")
		},
	}

	var downCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the journal by one version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, globalOptions, "down")
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Dump the migration status of the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, globalOptions, "status")
		},
	}

	var olderThan string
	var pruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := shared.ParseDuration(olderThan)
			if err != nil || age <= 0 {
				return fmt.Errorf("%w: --older-than must be a positive duration such as 90d", services.ErrValidation)
			}
			j, err := openJournal(globalOptions)
			if err != nil {
				return err
			}
			defer j.Close()
			if err := j.Migrate("up"); err != nil {
				return err
			}
			n, err := j.Prune(time.Now().Add(-age))
			if err != nil {
				return err
			}
			logging.Log.Infof("Pruned %d journal entries older than %s", n, olderThan)
			return printJSON(cmd, map[string]int64{"deleted": n})
		},
	}
	pruneCmd.Flags().StringVar(&olderThan, "older-than", "90d", "Age of the oldest entry to keep (e.g. 90d).")

	// Add subcommands
	migrateCmd.AddCommand(upCmd)
	migrateCmd.AddCommand(downCmd)
	migrateCmd.AddCommand(statusCmd)
	journalCmd.AddCommand(migrateCmd)
	journalCmd.AddCommand(pruneCmd)

	return journalCmd
}

func openJournal(globalOptions *GlobalOptions) (*journal.Journal, error) {
	if globalOptions.Conf == nil {
		return nil, fmt.Errorf("%w: configuration not loaded", services.ErrConfig)
	}
	j, err := journal.Connect(globalOptions.Conf.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}
	return j, nil
}

func runMigration(cmd *cobra.Command, globalOptions *GlobalOptions, command string) error {
	j, err := openJournal(globalOptions)
	if err != nil {
		return err
	}
	defer j.Close()

	logging.Log.Infof("Running migration command: %s", command)
	if err := j.Migrate(command); err != nil {
		return err
	}

	version, err := j.Version()
	if err != nil {
		return fmt.Errorf("could not read journal version: %w", err)
	}
	logging.Log.Info("Migration operation completed successfully.")
	return printJSON(cmd, map[string]any{"path": globalOptions.Conf.Journal.Path, "version": version})
}
