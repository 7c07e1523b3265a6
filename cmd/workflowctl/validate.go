package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

var errInvalidDefinitions = errors.New("one or more definitions are invalid")

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check definition files against the creation rules",
	Long: `Runs every rule the server applies on POST /workflow-definitions and lists all
violations per file. Exits non-zero if any file is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false

	for _, path := range args {
		req, err := loadRequest(path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed = true
			continue
		}

		err = domainwf.ValidateDefinition(req.ToDefinition())
		var wfErr *domainwf.Error
		if errors.As(err, &wfErr) {
			fmt.Fprintf(out, "%s: invalid\n", path)
			for _, v := range wfErr.Violations {
				fmt.Fprintf(out, "  - %s\n", v)
			}
			failed = true
			continue
		}

		fmt.Fprintf(out, "%s: ok (%d states, %d actions)\n", path, len(req.States), len(req.Actions))
	}

	if failed {
		return errInvalidDefinitions
	}
	return nil
}
