package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
)

type HistoryOptions struct {
	Kind   string
	Target string
	Since  string
	Limit  int
}

func NewHistoryCommand(globalOptions *GlobalOptions) *cobra.Command {

	historyOptions := &HistoryOptions{}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded operations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			filter, err := historyOptions.filter(time.Now())
			if err != nil {
				return err
			}
			ops, err := svc.History(filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, ops)
		},
	}
	historyCmd.Flags().StringVar(&historyOptions.Kind, "kind", "", "Only operations of this kind (e.g. transfer.apply).")
	historyCmd.Flags().StringVar(&historyOptions.Target, "target", "", "Only operations whose target contains this text.")
	historyCmd.Flags().StringVar(&historyOptions.Since, "since", "", "Only operations younger than this (e.g. 7d, 12h).")
	historyCmd.Flags().IntVar(&historyOptions.Limit, "limit", 50, "Maximum number of operations (0 for all).")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one recorded operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			op, err := svc.Operation(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, op)
		},
	}
	historyCmd.AddCommand(showCmd)

	return historyCmd
}

func (opt *HistoryOptions) filter(now time.Time) (models.OperationFilter, error) {
	filter := models.OperationFilter{Kind: opt.Kind, Target: opt.Target, Limit: opt.Limit}
	if opt.Since != "" {
		d, err := shared.ParseDuration(opt.Since)
		if err != nil {
			return filter, fmt.Errorf("%w: --since: %w", services.ErrValidation, err)
		}
		if d > 0 {
			filter.Since = now.Add(-d)
		}
	}
	return filter, nil
}
