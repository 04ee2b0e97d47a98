package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"librabench/internal/analyzer"
	"librabench/internal/config"
	"librabench/internal/driver"
	"librabench/internal/logging"
	"librabench/internal/runlog"
	"librabench/internal/suite"
)

// runFlags is the raw flag state shared by `run` and `plan`.
type runFlags struct {
	selection suiteSelection

	workDir   string
	logsDir   string
	historyDB string

	jobs         int
	skipExisting bool
	strict       bool
	dryRun       bool
	quiet        bool
	verbose      bool
	logLevel     string
}

func registerSuiteFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.selection.SuiteFile, "suite", "", "suite YAML file")
	cmd.Flags().StringVar(&f.selection.Builtin, "builtin", "", "built-in suite name (see `librabench suites`)")
	cmd.Flags().StringVar(&f.selection.Input, "input", "", "analyzer input file (first positional argument)")
	cmd.Flags().StringVar(&f.selection.Script, "script", "", "analyzer script file (second positional argument)")
	cmd.Flags().StringVar(&f.workDir, "workdir", "", "working directory for the analyzer (default: current directory)")
}

func newRunCommand(defaults config.Defaults) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <analyzer-path>",
		Short: "Run a benchmark suite against the analyzer",
		Long: `Runs every invocation of the selected suite against the analyzer binary.
Invocations execute sequentially in suite order unless --jobs raises the
worker count. Each invocation's stdout is duplicated to the terminal and to
<logs-dir>/<invocation>.log; stderr is captured into the same log. A failing
invocation never halts the remaining ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := buildRunInvocation(args[0], f)
			if err != nil {
				return err
			}
			return executeRun(cmd.Context(), cmd.OutOrStdout(), inv, f)
		},
	}

	registerSuiteFlags(cmd, f)
	cmd.Flags().StringVar(&f.logsDir, "logs-dir", defaults.LogsDir, "directory for per-invocation log files")
	cmd.Flags().StringVar(&f.historyDB, "history-db", defaults.HistoryDB, "run history SQLite database")
	cmd.Flags().IntVar(&f.jobs, "jobs", defaults.Jobs, "number of invocations to run concurrently")
	cmd.Flags().BoolVar(&f.skipExisting, "skip-existing", false, "skip invocations whose log file already exists")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "exit non-zero if any analyzer invocation fails")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "resolve and print the plan without running anything")
	cmd.Flags().BoolVar(&f.quiet, "quiet", false, "do not mirror analyzer stdout to the terminal")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "human-readable harness logs")
	cmd.Flags().StringVar(&f.logLevel, "log-level", defaults.LogLevel, "harness log level")
	return cmd
}

// buildRunInvocation canonicalizes flags and the analyzer argument into a
// runInvocation. No engine code has run yet when this returns.
func buildRunInvocation(analyzerPath string, f *runFlags) (runInvocation, error) {
	workDir := f.workDir
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return runInvocation{}, &CodedError{Code: ExitInternalError, Message: "cannot determine working directory", Cause: err}
		}
		workDir = cwd
	}
	workDir = filepath.Clean(workDir)
	if !filepath.IsAbs(workDir) {
		return runInvocation{}, invalidf("--workdir must be an absolute path (got %q)", workDir)
	}

	resolvedAnalyzer, err := resolveUnderWorkDir(workDir, analyzerPath)
	if err != nil {
		return runInvocation{}, err
	}

	// The suite file is a path flag like any other: resolve it under the
	// workdir before it is opened so the process CWD never matters.
	sel := f.selection
	if sel.SuiteFile != "" {
		sel.SuiteFile, err = resolveUnderWorkDir(workDir, sel.SuiteFile)
		if err != nil {
			return runInvocation{}, err
		}
	}

	s, err := resolveSuite(sel)
	if err != nil {
		return runInvocation{}, err
	}

	if f.jobs < 1 {
		return runInvocation{}, invalidf("--jobs must be >= 1 (got %d)", f.jobs)
	}

	inv := runInvocation{
		Analyzer:     resolvedAnalyzer,
		WorkDir:      workDir,
		Suite:        s,
		Jobs:         f.jobs,
		SkipExisting: f.skipExisting,
		Strict:       f.strict,
		DryRun:       f.dryRun,
		Quiet:        f.quiet,
	}

	if f.logsDir != "" {
		inv.LogsDir, err = resolveUnderWorkDir(workDir, f.logsDir)
		if err != nil {
			return runInvocation{}, err
		}
	}
	if f.historyDB != "" {
		inv.HistoryDB, err = resolveUnderWorkDir(workDir, f.historyDB)
		if err != nil {
			return runInvocation{}, err
		}
	}
	return inv, nil
}

func executeRun(ctx context.Context, out io.Writer, inv runInvocation, f *runFlags) error {
	if inv.DryRun {
		printPlan(out, inv)
		return nil
	}

	log, err := logging.New(f.logLevel, f.verbose)
	if err != nil {
		return invalidf("%v", err)
	}
	defer log.Sync()

	// Ctrl-C cancels the run; the executor kills the analyzer process group.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := runlog.Open(inv.HistoryDB)
	if err != nil {
		return configErr(err)
	}
	defer store.Close()

	runID := runlog.NewRunID()
	started := time.Now()
	if err := store.BeginRun(ctx, runlog.Run{
		ID:        runID,
		Suite:     inv.Suite.Name,
		Analyzer:  inv.Analyzer,
		Input:     inv.Suite.Input,
		Script:    inv.Suite.Script,
		StartedAt: started,
	}); err != nil {
		return configErr(err)
	}

	exec := analyzer.NewExecutor(inv.Analyzer, inv.WorkDir, log)
	if inv.Quiet {
		exec.Console = nil
	}

	obs := &runObserver{out: out, store: store, runID: runID, total: len(inv.Suite.Invocations)}

	d := &driver.Driver{
		Suite:        inv.Suite,
		Runner:       exec,
		LogsDir:      inv.LogsDir,
		Jobs:         inv.Jobs,
		SkipExisting: inv.SkipExisting,
		Observer:     obs,
		Log:          log,
	}

	report, runErr := d.Run(ctx)

	status := "completed"
	if runErr != nil || (report != nil && !report.Clean()) {
		status = "failed"
	}
	if report != nil {
		finCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.FinishRun(finCtx, runID, status, time.Now(),
			len(report.Results), failureTotal(report), report.Skipped); err != nil {
			log.Warn("recording run finish failed", zap.Error(err))
		}
		if err := writeRunManifest(inv, runID, report); err != nil {
			log.Warn("writing manifest failed", zap.Error(err))
		}
		printSummary(out, runID, report)
	}

	switch {
	case runErr != nil:
		return &CodedError{Code: ExitRunFailure, Message: fmt.Sprintf("run aborted: %v", runErr), Cause: runErr}
	case report.Errored > 0 || report.Canceled > 0:
		return &CodedError{Code: ExitRunFailure, Message: fmt.Sprintf("%d invocation(s) could not be executed", report.Errored+report.Canceled)}
	case inv.Strict && report.Failed > 0:
		return &CodedError{Code: ExitRunFailure, Message: fmt.Sprintf("%d analyzer invocation(s) exited non-zero", report.Failed)}
	default:
		return nil
	}
}

// failureTotal counts invocations that did not complete cleanly: analyzer
// failures, harness errors, and cancellations. This is the figure persisted
// as the run's failed total, so it must agree with the status derived from
// Report.Clean().
func failureTotal(report *driver.Report) int {
	return report.Failed + report.Errored + report.Canceled
}

func writeRunManifest(inv runInvocation, runID string, report *driver.Report) error {
	m := runlog.Manifest{
		RunID:    runID,
		Suite:    inv.Suite.Name,
		Analyzer: inv.Analyzer,
		Input:    inv.Suite.Input,
		Script:   inv.Suite.Script,
	}
	for i, res := range report.Results {
		params, err := json.Marshal(inv.Suite.Invocations[i].Params)
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, runlog.ManifestEntry{
			Seq:      res.Seq,
			Name:     res.Name,
			Params:   params,
			LogFile:  suite.LogFileName(inv.Suite.Invocations[i]),
			Outcome:  string(res.Outcome),
			ExitCode: res.ExitCode,
		})
	}
	return runlog.WriteManifest(inv.LogsDir, m)
}

func printSummary(out io.Writer, runID string, report *driver.Report) {
	fmt.Fprintf(out, "\nrun %s: %d ok, %d analyzer-failed, %d skipped, %d errored, %d canceled\n",
		runID, report.OK, report.Failed, report.Skipped, report.Errored, report.Canceled)
}

// runObserver prints progress lines and records per-invocation outcomes in
// the history store. Finished callbacks may arrive concurrently under --jobs.
type runObserver struct {
	out   io.Writer
	store *runlog.Store
	runID string
	total int

	mu sync.Mutex
}

func (o *runObserver) InvocationStarted(seq int, inv suite.Invocation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, "[%d/%d] %s\n", seq+1, o.total, inv.Name)
}

func (o *runObserver) InvocationFinished(seq int, inv suite.Invocation, res driver.InvocationResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	params, err := json.Marshal(inv.Params)
	if err != nil {
		params = []byte("{}")
	}
	rec := runlog.InvocationRecord{
		RunID:      o.runID,
		Seq:        seq,
		Name:       inv.Name,
		ParamsJSON: string(params),
		LogPath:    res.LogPath,
		Outcome:    string(res.Outcome),
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration.Milliseconds(),
	}
	// Recording is best effort; a history hiccup must not interrupt the run.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.RecordInvocation(ctx, rec); err != nil {
		fmt.Fprintf(o.out, "warning: recording %s failed: %v\n", inv.Name, err)
	}

	switch res.Outcome {
	case driver.OutcomeOK:
		fmt.Fprintf(o.out, "[%d/%d] %s: ok (%s)\n", seq+1, o.total, inv.Name, res.Duration.Round(time.Millisecond))
	case driver.OutcomeAnalyzerFailed:
		fmt.Fprintf(o.out, "[%d/%d] %s: exit %d (%s)\n", seq+1, o.total, inv.Name, res.ExitCode, res.Duration.Round(time.Millisecond))
	case driver.OutcomeSkipped:
		fmt.Fprintf(o.out, "[%d/%d] %s: skipped (log exists)\n", seq+1, o.total, inv.Name)
	case driver.OutcomeError:
		fmt.Fprintf(o.out, "[%d/%d] %s: error: %v\n", seq+1, o.total, inv.Name, res.Err)
	case driver.OutcomeCanceled:
		fmt.Fprintf(o.out, "[%d/%d] %s: canceled\n", seq+1, o.total, inv.Name)
	}
}
