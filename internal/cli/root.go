package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"librabench/internal/config"
)

// NewRootCommand builds the librabench command tree. Output is written to
// out so tests can capture it.
func NewRootCommand(out io.Writer) *cobra.Command {
	defaults := config.Load()

	root := &cobra.Command{
		Use:   "librabench",
		Short: "Benchmark harness for the LIBRA analyzer",
		Long: `librabench drives benchmarking experiments against an external LIBRA
analyzer binary: it runs the analyzer once per invocation in a suite,
duplicates each invocation's standard output to the terminal and to a distinct
log file, and records exit codes and timings in a run history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.AddCommand(
		newRunCommand(defaults),
		newPlanCommand(defaults),
		newSuitesCommand(),
		newHistoryCommand(defaults),
	)
	return root
}

// Main runs the CLI and returns the process exit code.
func Main(args []string) int {
	root := NewRootCommand(os.Stdout)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitCodeFor(err)
	}
	return ExitSuccess
}
