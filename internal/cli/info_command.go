package cli

import (
	"github.com/spf13/cobra"
)

func NewInfoCommand(globalOptions *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the configuration tree and the tool's state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globalOptions.Service()
			if err != nil {
				return err
			}
			return printJSON(cmd, svc.GetInfo(Version))
		},
	}
}
