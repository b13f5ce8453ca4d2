package cli

import (
	"github.com/spf13/cobra"
)

type RenameOptions struct {
	RegenerateID bool
}

func NewRenameCommand(globalOptions *GlobalOptions) *cobra.Command {

	renameOptions := &RenameOptions{}

	renameCommand := &cobra.Command{
		Use:   "rename <document|model folder> <new name>",
		Short: "Change the display name of a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, path, err := documentArg(globalOptions, args[0])
			if err != nil {
				return err
			}
			res, err := svc.RenameModel(cmd.Context(), path, args[1], renameOptions.RegenerateID)
			if res != nil {
				if perr := printJSON(cmd, res); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}

	renameCommand.Flags().BoolVar(&renameOptions.RegenerateID, "new-id", false, "Also give the model a fresh ModelID.")

	return renameCommand
}
