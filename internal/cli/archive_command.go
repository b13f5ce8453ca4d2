package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/archive"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/config"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

type ArchiveBuildOptions struct {
	Out        string
	Notes      string
	Reason     string
	Only       []string
	PluginAuth bool
}

type ArchiveRestoreOptions struct {
	Only          []string
	PluginAuth    bool
	NoPreBackup   bool
	CreateMissing bool
}

var areaNames = []string{
	models.AreaGlobalConfig,
	models.AreaCustomParameters,
	models.AreaCalibration,
	models.AreaVisualEffects,
	models.AreaModelConfigs,
	models.AreaModelAssets,
	models.AreaItemConfigs,
	models.AreaPluginAuth,
}

func NewArchiveCommand(globalOptions *GlobalOptions) *cobra.Command {

	var archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Full configuration archives",
		Long: `Package the configuration tree into a zip archive with a fingerprinted
manifest, inspect and verify archives, and restore them.`,
	}

	buildOptions := &ArchiveBuildOptions{}
	var buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Package the configuration tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			opts, err := selectAreas(models.DefaultArchiveOptions(), buildOptions.Only, buildOptions.PluginAuth || globalOptions.Conf.Archive.IncludePluginAuth)
			if err != nil {
				return err
			}
			opts.Notes = buildOptions.Notes
			if buildOptions.Reason != "" {
				opts.Reason = buildOptions.Reason
			}
			opts.Algorithm = string(globalOptions.Conf.Algorithm)

			type built struct {
				Path     string                  `json:"path"`
				Manifest *models.ArchiveManifest `json:"manifest"`
			}
			res, err := runTask(cmd, "archive build", func(ctx context.Context, r task.Reporter) (built, error) {
				path, m, err := svc.BuildArchive(ctx, opts, buildOptions.Out, r)
				return built{Path: path, Manifest: m}, err
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	buildCmd.Flags().StringVarP(&buildOptions.Out, "out", "o", "", "Archive file to write (default: a timestamped file in the archive directory).")
	buildCmd.Flags().StringVar(&buildOptions.Notes, "notes", "", "Notes stored in the manifest.")
	buildCmd.Flags().StringVar(&buildOptions.Reason, "reason", "", "Reason stored in the manifest (default: manual).")
	buildCmd.Flags().StringSliceVar(&buildOptions.Only, "only", nil, "Areas to include: "+strings.Join(areaNames, ", ")+".")
	buildCmd.Flags().BoolVar(&buildOptions.PluginAuth, "plugin-auth", false, "Include plugin authentication tokens.")

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List archives in the archive directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			list, err := svc.ListArchives()
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}

	var contentsCmd = &cobra.Command{
		Use:   "contents <archive>",
		Short: "Print the manifest of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			m, err := svc.ArchiveContents(archivePath(globalOptions.Conf, args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}

	var verifyCmd = &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check every archive entry against its manifest fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			rep, err := svc.VerifyArchive(archivePath(globalOptions.Conf, args[0]))
			if err != nil {
				return err
			}
			if err := printJSON(cmd, nonNilReport(rep)); err != nil {
				return err
			}
			if !rep.OK() {
				return fmt.Errorf("%w: %d problems", services.ErrIntegrity, len(rep.Errors))
			}
			return nil
		},
	}

	restoreOptions := &ArchiveRestoreOptions{}
	var restoreCmd = &cobra.Command{
		Use:   "restore <archive>",
		Short: "Write an archive back into the configuration tree",
		Long: `Verifies the whole archive, backs up every document about to be overwritten
and restores the selected areas one file at a time. A file that fails its
check is rolled back on its own; the others are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			sel, err := selectAreas(models.DefaultArchiveOptions(), restoreOptions.Only, restoreOptions.PluginAuth)
			if err != nil {
				return err
			}
			opts := models.DefaultRestoreOptions()
			opts.ArchiveOptions = sel
			opts.PreRestoreBackup = !restoreOptions.NoPreBackup
			opts.CreateMissing = restoreOptions.CreateMissing
			opts.LockMode = ""

			path := archivePath(globalOptions.Conf, args[0])
			report, err := runTask(cmd, "archive restore", func(ctx context.Context, r task.Reporter) (*models.RestoreReport, error) {
				return svc.RestoreArchive(ctx, path, opts, r)
			})
			if report != nil {
				if perr := printJSON(cmd, report); perr != nil && err == nil {
					err = perr
				}
				if err == nil && report.Failed > 0 {
					err = fmt.Errorf("%w: %d of %d files failed to restore", services.ErrIO, report.Failed, report.Failed+report.Restored)
				}
			}
			return err
		},
	}
	restoreCmd.Flags().StringSliceVar(&restoreOptions.Only, "only", nil, "Areas to restore: "+strings.Join(areaNames, ", ")+".")
	restoreCmd.Flags().BoolVar(&restoreOptions.PluginAuth, "plugin-auth", false, "Also restore plugin authentication tokens.")
	restoreCmd.Flags().BoolVar(&restoreOptions.NoPreBackup, "no-backup", false, "Skip the backup of documents about to be overwritten.")
	restoreCmd.Flags().BoolVar(&restoreOptions.CreateMissing, "create-missing", false, "Recreate model documents that are no longer installed.")

	var uploadCmd = &cobra.Command{
		Use:   "upload <archive>",
		Short: "Send a verified archive to the configured S3 bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			key, err := svc.UploadArchive(cmd.Context(), archivePath(globalOptions.Conf, args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"bucket": globalOptions.Conf.S3.Bucket, "key": key})
		},
	}

	var deleteCmd = &cobra.Command{
		Use:   "delete <archive>",
		Short: "Delete an archive from the archive directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			path := archivePath(globalOptions.Conf, args[0])
			if err := svc.DeleteArchive(path); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"deleted": path})
		},
	}

	// Add subcommands
	archiveCmd.AddCommand(buildCmd, listCmd, contentsCmd, verifyCmd, restoreCmd, uploadCmd, deleteCmd)

	return archiveCmd
}

// selectAreas narrows base to the areas named in only. With no names, base
// is kept and plugin auth follows pluginAuth.
func selectAreas(base models.ArchiveOptions, only []string, pluginAuth bool) (models.ArchiveOptions, error) {
	if len(only) == 0 {
		base.IncludePluginAuth = pluginAuth
		return base, nil
	}
	sel := models.ArchiveOptions{Notes: base.Notes, Reason: base.Reason, AppVersion: base.AppVersion, Algorithm: base.Algorithm}
	for _, name := range only {
		switch strings.TrimSpace(name) {
		case models.AreaGlobalConfig:
			sel.IncludeGlobalConfig = true
		case models.AreaCustomParameters:
			sel.IncludeCustomParameters = true
		case models.AreaCalibration:
			sel.IncludeCalibration = true
		case models.AreaVisualEffects:
			sel.IncludeVisualEffects = true
		case models.AreaModelConfigs:
			sel.IncludeModelConfigs = true
		case models.AreaModelAssets:
			sel.IncludeModelAssets = true
		case models.AreaItemConfigs:
			sel.IncludeItemConfigs = true
		case models.AreaPluginAuth:
			sel.IncludePluginAuth = true
		default:
			return sel, fmt.Errorf("%w: unknown area %q", services.ErrValidation, name)
		}
	}
	if pluginAuth {
		sel.IncludePluginAuth = true
	}
	return sel, nil
}

// archivePath accepts either a path or the bare name of an archive in the
// archive directory.
func archivePath(cfg *config.Config, arg string) string {
	if storage.Exists(arg) || strings.ContainsRune(arg, filepath.Separator) || strings.Contains(arg, "/") {
		return arg
	}
	name := arg
	if !strings.HasSuffix(name, archive.Extension) {
		name += archive.Extension
	}
	return filepath.Join(cfg.Paths.ArchiveDir, name)
}
