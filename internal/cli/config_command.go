package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/config"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

func NewConfigCommand(globalOptions *GlobalOptions) *cobra.Command {

	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration file tools",
	}

	var force bool
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to --config_path",
		Long: `Writes the configuration in effect (defaults, environment and flags) to the
file named by --config_path so it can be edited.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalOptions.CfgFilePath
			if storage.Exists(path) && !force {
				return fmt.Errorf("%w: %s already exists (use --force)", services.ErrConflict, path)
			}
			if err := config.SaveConfig(path, globalOptions.Conf); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"written": path})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file.")

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the configuration in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, globalOptions.Conf)
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}
