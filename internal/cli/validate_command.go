package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

type validateResult struct {
	Document string `json:"document"`
	Valid    bool   `json:"valid"`
	models.Report
}

func NewValidateCommand(globalOptions *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <document|model folder>...",
		Short: "Check documents without changing them",
		Long: `Parses and validates model documents and the global settings document.
A model folder is resolved to the single .vtube.json file inside it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, globalOptions, args)
		},
	}
}

func runValidate(cmd *cobra.Command, globalOptions *GlobalOptions, args []string) error {
	svc, err := globalOptions.Service()
	if err != nil {
		return err
	}

	results := make([]validateResult, 0, len(args))
	invalid := 0
	for _, arg := range args {
		path, err := services.ModelDocument(arg)
		if err != nil {
			return err
		}
		rep, err := svc.ValidateDocument(path)
		if err != nil {
			return err
		}
		if !rep.OK() {
			invalid++
		}
		results = append(results, validateResult{Document: path, Valid: rep.OK(), Report: nonNilReport(rep)})
	}

	if err := printJSON(cmd, results); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d documents", services.ErrValidation, invalid, len(args))
	}
	return nil
}

// nonNilReport keeps empty issue lists as [] in the output.
func nonNilReport(rep models.Report) models.Report {
	if rep.Errors == nil {
		rep.Errors = []models.Issue{}
	}
	if rep.Warnings == nil {
		rep.Warnings = []models.Issue{}
	}
	return rep
}
