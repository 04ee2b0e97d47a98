// Package driver orchestrates the execution of a benchmark suite.
//
// The driver owns run semantics only: ordering, continue-on-failure, the
// optional worker pool, and progress callbacks. What one invocation does is
// the analyzer executor's business; what gets persisted where is the caller's.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"librabench/internal/analyzer"
	"librabench/internal/suite"
)

// Outcome classifies how one invocation ended.
type Outcome string

const (
	// OutcomeOK: the analyzer ran and exited zero.
	OutcomeOK Outcome = "ok"

	// OutcomeAnalyzerFailed: the analyzer ran and exited non-zero. This is
	// recorded data, not a harness failure; the run continues.
	OutcomeAnalyzerFailed Outcome = "analyzer-failed"

	// OutcomeSkipped: the invocation's log file already existed and
	// skip-existing was requested.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeError: the harness could not run or observe the invocation
	// (log unwritable, binary missing). The run still continues.
	OutcomeError Outcome = "error"

	// OutcomeCanceled: the run was canceled before or during this
	// invocation.
	OutcomeCanceled Outcome = "canceled"
)

// InvocationResult is the driver-level outcome of one invocation.
type InvocationResult struct {
	Seq      int
	Name     string
	Outcome  Outcome
	ExitCode int
	Duration time.Duration
	LogPath  string

	// Err is set only for OutcomeError.
	Err error
}

// InvocationRunner runs a single invocation. *analyzer.Executor is the real
// implementation; tests substitute fakes.
type InvocationRunner interface {
	Run(ctx context.Context, inv suite.Invocation, input, script, logPath string) (*analyzer.Result, error)
}

// Observer receives progress callbacks. Callbacks for different invocations
// may arrive concurrently when Jobs > 1; implementations synchronize
// themselves.
type Observer interface {
	InvocationStarted(seq int, inv suite.Invocation)
	InvocationFinished(seq int, inv suite.Invocation, res InvocationResult)
}

// Driver executes one suite.
type Driver struct {
	Suite  suite.Suite
	Runner InvocationRunner

	// LogsDir receives one log file per invocation.
	LogsDir string

	// Jobs is the worker pool size. Values below 2 mean strictly
	// sequential execution in suite order, which is the default and
	// matches the original experiment scripts.
	Jobs int

	// SkipExisting skips invocations whose log file is already present.
	SkipExisting bool

	// Observer is optional.
	Observer Observer

	Log *zap.Logger
}

// Report is the complete, ordered outcome of a run.
//
// Results[i] always corresponds to Suite.Invocations[i] regardless of Jobs:
// parallel workers write into their own slot, never append.
type Report struct {
	Results []InvocationResult

	OK       int
	Failed   int
	Skipped  int
	Errored  int
	Canceled int
}

func (r *Report) tally() {
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeOK:
			r.OK++
		case OutcomeAnalyzerFailed:
			r.Failed++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeError:
			r.Errored++
		case OutcomeCanceled:
			r.Canceled++
		}
	}
}

// Clean reports whether every invocation ran and exited zero (skips count as
// clean).
func (r *Report) Clean() bool {
	return r.Failed == 0 && r.Errored == 0 && r.Canceled == 0
}

// Run executes the suite and returns the per-invocation report.
//
// A non-nil error means the run itself was defective (bad configuration,
// cancellation); individual invocation failures never produce one. Even on
// error the returned report reflects all work done so far.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	if d.Runner == nil {
		return nil, errors.New("driver: Runner is required")
	}
	if len(d.Suite.Invocations) == 0 {
		return nil, errors.New("driver: suite has no invocations")
	}
	if err := os.MkdirAll(d.LogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("driver: creating logs dir: %w", err)
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	report := &Report{Results: make([]InvocationResult, len(d.Suite.Invocations))}

	var runErr error
	if d.Jobs > 1 {
		runErr = d.runParallel(ctx, report)
	} else {
		runErr = d.runSerial(ctx, report)
	}

	report.tally()
	log.Info("run finished",
		zap.String("suite", d.Suite.Name),
		zap.Int("ok", report.OK),
		zap.Int("analyzer_failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errored", report.Errored),
		zap.Int("canceled", report.Canceled),
	)
	return report, runErr
}

func (d *Driver) runSerial(ctx context.Context, report *Report) error {
	for i, inv := range d.Suite.Invocations {
		if err := ctx.Err(); err != nil {
			d.markCanceledFrom(report, i)
			return err
		}
		report.Results[i] = d.runOne(ctx, i, inv)
	}
	return nil
}

func (d *Driver) runParallel(ctx context.Context, report *Report) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Jobs)

	for i, inv := range d.Suite.Invocations {
		i, inv := i, inv
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Results[i] = InvocationResult{
					Seq: i, Name: inv.Name, Outcome: OutcomeCanceled,
				}
				return nil
			}
			report.Results[i] = d.runOne(gctx, i, inv)
			// Invocation failures are data; never tear down the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// runOne executes a single invocation and never returns an error: every
// failure mode is folded into the result's Outcome.
func (d *Driver) runOne(ctx context.Context, seq int, inv suite.Invocation) InvocationResult {
	logPath := filepath.Join(d.LogsDir, suite.LogFileName(inv))

	if d.SkipExisting {
		if _, err := os.Stat(logPath); err == nil {
			res := InvocationResult{Seq: seq, Name: inv.Name, Outcome: OutcomeSkipped, LogPath: logPath}
			d.notifyFinished(seq, inv, res)
			return res
		}
	}

	if d.Observer != nil {
		d.Observer.InvocationStarted(seq, inv)
	}

	res, err := d.Runner.Run(ctx, inv, d.Suite.Input, d.Suite.Script, logPath)
	out := InvocationResult{Seq: seq, Name: inv.Name, LogPath: logPath}
	switch {
	case err != nil:
		out.Outcome = OutcomeError
		out.Err = err
	case res.Canceled:
		out.Outcome = OutcomeCanceled
		out.ExitCode = res.ExitCode
		out.Duration = res.Duration
	case res.ExitCode != 0:
		out.Outcome = OutcomeAnalyzerFailed
		out.ExitCode = res.ExitCode
		out.Duration = res.Duration
	default:
		out.Outcome = OutcomeOK
		out.Duration = res.Duration
	}

	d.notifyFinished(seq, inv, out)
	return out
}

func (d *Driver) markCanceledFrom(report *Report, start int) {
	for i := start; i < len(d.Suite.Invocations); i++ {
		report.Results[i] = InvocationResult{
			Seq:     i,
			Name:    d.Suite.Invocations[i].Name,
			Outcome: OutcomeCanceled,
		}
	}
}

func (d *Driver) notifyFinished(seq int, inv suite.Invocation, res InvocationResult) {
	if d.Observer != nil {
		d.Observer.InvocationFinished(seq, inv, res)
	}
}
