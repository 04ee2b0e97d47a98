package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"librabench/internal/suite"
)

func newSuitesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "suites",
		Short: "List built-in suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range suite.BuiltinNames() {
				n, err := suite.BuiltinSize(name)
				if err != nil {
					return &CodedError{Code: ExitInternalError, Message: err.Error(), Cause: err}
				}
				fmt.Fprintf(out, "%s\t%d invocation(s)\n", name, n)
			}
			return nil
		},
	}
}
