package cli

import (
	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

type HousekeepingOptions struct {
	Watch bool
}

// newHousekeeping builds the housekeeping worker; tests replace it.
var newHousekeeping = func(svc *services.Service) services.HousekeepingService {
	return services.NewHousekeepingService(svc)
}

func NewHousekeepingCommand(globalOptions *GlobalOptions) *cobra.Command {

	housekeepingOptions := &HousekeepingOptions{}

	housekeepingCmd := &cobra.Command{
		Use:   "housekeeping",
		Short: "Prune old backups and archives",
		Long: `Runs the retention policy once: keeps the newest [backup] keep backups of
every document and deletes archives by age, count and disk space.
With --watch it keeps running on the [housekeeping] interval and whenever a
new archive appears, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHousekeeping(cmd, globalOptions, housekeepingOptions)
		},
	}
	housekeepingCmd.Flags().BoolVar(&housekeepingOptions.Watch, "watch", false, "Keep running until interrupted.")

	return housekeepingCmd
}

func runHousekeeping(cmd *cobra.Command, globalOptions *GlobalOptions, opt *HousekeepingOptions) error {
	svc, err := globalOptions.Service()
	if err != nil {
		return err
	}
	hk := newHousekeeping(svc)

	if !opt.Watch {
		report, err := hk.TriggerHousekeeping()
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	}

	// 1. Periodic runs in the background (the first one right away).
	hk.Start()
	defer hk.Stop()

	// 2. Event driven runs until interrupted.
	logging.Log.Infof("Housekeeping watching %s", globalOptions.Conf.Paths.ArchiveDir)
	if err := hk.Watch(cmd.Context()); err != nil {
		return err
	}
	logging.Log.Info("Housekeeping stopped")
	return nil
}
