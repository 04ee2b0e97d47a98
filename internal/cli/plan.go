package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"librabench/internal/analyzer"
	"librabench/internal/config"
	"librabench/internal/suite"
)

func newPlanCommand(defaults config.Defaults) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "plan <analyzer-path>",
		Short: "Print the exact command line of every invocation without running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := buildRunInvocation(args[0], f)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), inv)
			return nil
		},
	}

	registerSuiteFlags(cmd, f)
	cmd.Flags().StringVar(&f.logsDir, "logs-dir", defaults.LogsDir, "directory for per-invocation log files")
	// plan never touches the history db or workers, but the invocation
	// builder validates jobs.
	f.jobs = 1
	return cmd
}

func printPlan(out io.Writer, inv runInvocation) {
	fmt.Fprintf(out, "suite %s: %d invocation(s)\n", inv.Suite.Name, len(inv.Suite.Invocations))
	for _, item := range inv.Suite.Invocations {
		argv := analyzer.CommandLine(inv.Analyzer, inv.Suite.Input, inv.Suite.Script, item.Params)
		logPath := filepath.Join(inv.LogsDir, suite.LogFileName(item))
		fmt.Fprintf(out, "  %s > %s\n", strings.Join(argv, " "), logPath)
	}
}
