package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/profile"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

type ProfileSaveOptions struct {
	Category    string
	Description string
	Tags        []string
	CustomKeys  []string
	NoOverwrite bool
}

type ProfileApplyOptions struct {
	DryRun        bool
	RequireBackup bool
}

func NewProfileCommand(globalOptions *GlobalOptions) *cobra.Command {

	var profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "Global settings profiles",
		Long:  `Save subsets of the global settings as named profiles and merge them back later.`,
	}

	saveOptions := &ProfileSaveOptions{}
	var saveCmd = &cobra.Command{
		Use:   "save <name>",
		Short: "Capture the current global settings as a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			cat := models.ProfileCategory(saveOptions.Category)
			if !cat.IsValid() {
				return fmt.Errorf("%w: unknown category %q", services.ErrValidation, saveOptions.Category)
			}
			p, err := svc.SaveProfile(cmd.Context(), args[0], cat, profile.SaveOptions{
				Description: saveOptions.Description,
				Tags:        saveOptions.Tags,
				CustomKeys:  saveOptions.CustomKeys,
				NoOverwrite: saveOptions.NoOverwrite,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
	saveCmd.Flags().StringVar(&saveOptions.Category, "category", string(models.CategoryComplete), "What to capture: complete, tracking, api, ui or custom.")
	saveCmd.Flags().StringVar(&saveOptions.Description, "description", "", "Free text description.")
	saveCmd.Flags().StringSliceVar(&saveOptions.Tags, "tag", nil, "Tag (repeatable).")
	saveCmd.Flags().StringSliceVar(&saveOptions.CustomKeys, "key", nil, "Key substring captured by the custom category (repeatable).")
	saveCmd.Flags().BoolVar(&saveOptions.NoOverwrite, "no-overwrite", false, "Fail if a profile with this name exists.")

	var loadCmd = &cobra.Command{
		Use:   "load <name>",
		Short: "Print a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			p, err := svc.LoadProfile(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}

	applyOptions := &ProfileApplyOptions{}
	var applyCmd = &cobra.Command{
		Use:   "apply <name>",
		Short: "Merge a profile into the global settings",
		Long: `Updates the keys the profile captured and appends the ones the global
settings lack. Every other key is left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			opts := profile.DefaultApplyOptions()
			opts.LockMode = ""
			opts.DryRun = applyOptions.DryRun
			opts.RequireBackup = applyOptions.RequireBackup
			res, err := svc.ApplyProfile(cmd.Context(), args[0], opts)
			if res != nil {
				if perr := printJSON(cmd, res); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
	applyCmd.Flags().BoolVar(&applyOptions.DryRun, "dry-run", false, "Report the changes without writing.")
	applyCmd.Flags().BoolVar(&applyOptions.RequireBackup, "require-backup", true, "Refuse to write unless the settings were backed up.")

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			list, err := svc.ListProfiles()
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}

	var deleteCmd = &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			if err := svc.DeleteProfile(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"deleted": args[0]})
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare two stored profiles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			d, err := svc.DiffProfiles(args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		},
	}

	var exportCmd = &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Write a stored profile to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			if err := svc.ExportProfile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"exported": args[0], "path": args[1]})
		},
	}

	var overwrite bool
	var importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Add a profile file to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			p, err := svc.ImportProfile(cmd.Context(), args[0], overwrite)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
	importCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace a stored profile with the same name.")

	// Add subcommands
	profileCmd.AddCommand(saveCmd, loadCmd, applyCmd, listCmd, deleteCmd, diffCmd, exportCmd, importCmd)

	return profileCmd
}
