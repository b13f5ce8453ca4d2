package cli

import (
	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

func NewBackupCommand(globalOptions *GlobalOptions) *cobra.Command {

	var backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Document backup tools",
		Long:  `Create, list, restore and prune the timestamped backups kept next to each document.`,
	}

	var createCmd = &cobra.Command{
		Use:   "create <document>",
		Short: "Snapshot a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, path, err := documentArg(globalOptions, args[0])
			if err != nil {
				return err
			}
			rec, err := svc.CreateBackup(cmd.Context(), path)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}

	var listCmd = &cobra.Command{
		Use:   "list <document>",
		Short: "List the backups of a document, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, path, err := documentArg(globalOptions, args[0])
			if err != nil {
				return err
			}
			recs, err := svc.ListBackups(path)
			if err != nil {
				return err
			}
			return printJSON(cmd, recs)
		},
	}

	var backupID string
	var restoreCmd = &cobra.Command{
		Use:   "restore <document>",
		Short: "Put a backup back in place of the document",
		Long:  `Restores the newest backup, or the one named by --id. The current document is backed up first.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, path, err := documentArg(globalOptions, args[0])
			if err != nil {
				return err
			}
			rec, err := svc.RestoreBackup(cmd.Context(), path, backupID)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
	restoreCmd.Flags().StringVar(&backupID, "id", "", "Backup id to restore (default: newest).")

	var keep int
	var pruneCmd = &cobra.Command{
		Use:   "prune <document>",
		Short: "Delete all but the newest backups of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, path, err := documentArg(globalOptions, args[0])
			if err != nil {
				return err
			}
			removed, err := svc.PruneBackups(cmd.Context(), path, keep)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"removed": removed})
		},
	}
	pruneCmd.Flags().IntVar(&keep, "keep", -1, "Backups to keep (default: [backup] keep).")

	// Add subcommands
	backupCmd.AddCommand(createCmd)
	backupCmd.AddCommand(listCmd)
	backupCmd.AddCommand(restoreCmd)
	backupCmd.AddCommand(pruneCmd)

	return backupCmd
}

// documentArg returns the service and the document named by arg.
func documentArg(globalOptions *GlobalOptions, arg string) (*services.Service, string, error) {
	svc, err := globalOptions.Service()
	if err != nil {
		return nil, "", err
	}
	path, err := services.ModelDocument(arg)
	if err != nil {
		return nil, "", err
	}
	return svc, path, nil
}
