package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

type TransferOptions struct {
	HotkeyIDs           []string
	MappingIDs          []string
	RegenerateIDs       bool
	CopyAssets          bool
	RequireBackup       bool
	Strict              bool
	Atomic              bool
	RequireKnownOutputs bool
	DryRun              bool
	ValidateOnly        bool
}

func NewTransferCommand(globalOptions *GlobalOptions) *cobra.Command {

	transferOptions := &TransferOptions{}

	transferCommand := &cobra.Command{
		Use:   "transfer <source> <target>",
		Short: "Copy hotkeys and parameter mappings between models",
		Long: `Copies the selected hotkeys and parameter mappings from the source model
document into the target. The target is locked, backed up and revalidated;
a target that fails the check after the write is restored from the backup.
Flags that are not given take their value from the [transfer] config section.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, globalOptions, transferOptions, args[0], args[1])
		},
	}

	transferOptions.registerFlags(transferCommand)

	return transferCommand
}

func (opt *TransferOptions) registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&opt.HotkeyIDs, "hotkey", nil, "HotkeyID to transfer (repeatable).")
	cmd.Flags().StringSliceVar(&opt.MappingIDs, "mapping", nil, "Name of a parameter mapping to transfer (repeatable).")
	cmd.Flags().BoolVar(&opt.RegenerateIDs, "regenerate-ids", false, "Give transferred hotkeys fresh ids.")
	cmd.Flags().BoolVar(&opt.CopyAssets, "copy-assets", false, "Copy referenced expression and animation files.")
	cmd.Flags().BoolVar(&opt.RequireBackup, "require-backup", true, "Refuse to write unless the target was backed up.")
	cmd.Flags().BoolVar(&opt.Strict, "strict", false, "Treat missing assets as errors.")
	cmd.Flags().BoolVar(&opt.Atomic, "atomic", true, "Abort the whole transfer when any element fails.")
	cmd.Flags().BoolVar(&opt.RequireKnownOutputs, "require-known-outputs", false, "Reject mappings whose output parameter the target does not use.")
	cmd.Flags().BoolVar(&opt.DryRun, "dry-run", false, "Plan the transfer and report it without writing.")
	cmd.Flags().BoolVar(&opt.ValidateOnly, "validate-only", false, "Only report whether the transfer would succeed.")
}

// spec merges the flags that were given over the configured defaults.
func (opt *TransferOptions) spec(cmd *cobra.Command, defaults models.TransferSpec) models.TransferSpec {
	spec := defaults
	spec.HotkeyIDs = opt.HotkeyIDs
	spec.MappingIDs = opt.MappingIDs
	spec.DryRun = opt.DryRun

	flags := cmd.Flags()
	for name, pair := range map[string]struct {
		dst *bool
		val bool
	}{
		"regenerate-ids":        {&spec.RegenerateIDs, opt.RegenerateIDs},
		"copy-assets":           {&spec.CopyAssets, opt.CopyAssets},
		"require-backup":        {&spec.RequireBackup, opt.RequireBackup},
		"strict":                {&spec.Strict, opt.Strict},
		"atomic":                {&spec.Atomic, opt.Atomic},
		"require-known-outputs": {&spec.RequireKnownOutputs, opt.RequireKnownOutputs},
	} {
		if flags.Changed(name) {
			*pair.dst = pair.val
		}
	}
	return spec
}

func runTransfer(cmd *cobra.Command, globalOptions *GlobalOptions, opt *TransferOptions, src, dst string) error {
	svc, err := globalOptions.Service()
	if err != nil {
		return err
	}
	if len(opt.HotkeyIDs) == 0 && len(opt.MappingIDs) == 0 {
		return fmt.Errorf("%w: nothing selected, pass --hotkey or --mapping", services.ErrValidation)
	}
	if src, err = services.ModelDocument(src); err != nil {
		return err
	}
	if dst, err = services.ModelDocument(dst); err != nil {
		return err
	}
	spec := opt.spec(cmd, globalOptions.Conf.TransferDefaults())

	if opt.ValidateOnly {
		rep, err := svc.ValidateTransfer(cmd.Context(), src, dst, spec)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, nonNilReport(rep)); err != nil {
			return err
		}
		if !rep.OK() {
			return fmt.Errorf("%w: %d problems", services.ErrValidation, len(rep.Errors))
		}
		return nil
	}

	res, err := runTask(cmd, "transfer", func(ctx context.Context, r task.Reporter) (*models.TransferResult, error) {
		return svc.Transfer(ctx, src, dst, spec, r)
	})
	if res != nil {
		if perr := printJSON(cmd, res); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}
