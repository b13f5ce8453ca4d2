package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

type RecoveryOptions struct {
	DryRun bool // If true, report only without editing
}

func NewRecoveryCommand(globalOptions *GlobalOptions) *cobra.Command {

	recoveryOptions := &RecoveryOptions{DryRun: false}

	recoveryCommand := &cobra.Command{
		Use:   "recovery",
		Short: "Restore invalid documents from their last good backup",
		Long: `Validates every model document and the global settings document. Each
document that fails is replaced by its newest backup that still validates
(the broken document is backed up first). Documents without such a backup
are reported and left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecovery(cmd, globalOptions, recoveryOptions)
		},
	}

	recoveryOptions.registerFlags(recoveryCommand)

	return recoveryCommand

}

func (opt *RecoveryOptions) registerFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&opt.DryRun, "dryrun", false, "If true, report only without editing.")
}

func runRecovery(cmd *cobra.Command, globalOptions *GlobalOptions, recoveryOptions *RecoveryOptions) error {
	svc, err := globalOptions.Service()
	if err != nil {
		return err
	}
	report, err := svc.Recover(cmd.Context(), recoveryOptions.DryRun)
	if report != nil {
		if perr := printJSON(cmd, report); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}
	if unresolved := len(report.Invalid) - report.Restored; !recoveryOptions.DryRun && unresolved > 0 {
		return fmt.Errorf("%w: %d documents could not be recovered", services.ErrValidation, unresolved)
	}
	return nil
}
