package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"librabench/internal/analyzer"
	"librabench/internal/suite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner scripts per-invocation outcomes and records call order.
type fakeRunner struct {
	mu    sync.Mutex
	calls []string

	// exitCodes maps invocation name to analyzer exit code.
	exitCodes map[string]int

	// failures maps invocation name to an infrastructure error.
	failures map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, inv suite.Invocation, input, script, logPath string) (*analyzer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv.Name)
	f.mu.Unlock()

	if err, ok := f.failures[inv.Name]; ok {
		return nil, err
	}
	code := f.exitCodes[inv.Name]
	return &analyzer.Result{ExitCode: code, Duration: time.Millisecond, LogPath: logPath}, nil
}

func (f *fakeRunner) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func testSuite(names ...string) suite.Suite {
	s := suite.Suite{Name: "t", Input: "in.py", Script: "spec.py"}
	for _, n := range names {
		s.Invocations = append(s.Invocations, suite.Invocation{
			Name:   n,
			Params: suite.Params{Domain: "deeppoly"},
		})
	}
	return s
}

func TestRun_SerialPreservesSuiteOrder(t *testing.T) {
	runner := &fakeRunner{}
	d := &Driver{
		Suite:   testSuite("a", "b", "c"),
		Runner:  runner,
		LogsDir: t.TempDir(),
	}

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, runner.callOrder())
	assert.Equal(t, 3, report.OK)
	assert.True(t, report.Clean())
	for i, res := range report.Results {
		assert.Equal(t, i, res.Seq)
		assert.Equal(t, OutcomeOK, res.Outcome)
	}
}

func TestRun_ContinuesPastAnalyzerFailure(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"b": 9}}
	d := &Driver{
		Suite:   testSuite("a", "b", "c"),
		Runner:  runner,
		LogsDir: t.TempDir(),
	}

	report, err := d.Run(context.Background())
	require.NoError(t, err, "an analyzer failure is data, not a run error")
	assert.Equal(t, []string{"a", "b", "c"}, runner.callOrder(), "the failing invocation must not halt the rest")
	assert.Equal(t, 2, report.OK)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, OutcomeAnalyzerFailed, report.Results[1].Outcome)
	assert.Equal(t, 9, report.Results[1].ExitCode)
	assert.False(t, report.Clean())
}

func TestRun_ContinuesPastInfrastructureError(t *testing.T) {
	boom := errors.New("binary not found")
	runner := &fakeRunner{failures: map[string]error{"a": boom}}
	d := &Driver{
		Suite:   testSuite("a", "b"),
		Runner:  runner,
		LogsDir: t.TempDir(),
	}

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, OutcomeError, report.Results[0].Outcome)
	assert.ErrorIs(t, report.Results[0].Err, boom)
	assert.Equal(t, OutcomeOK, report.Results[1].Outcome)
}

func TestRun_SkipExisting(t *testing.T) {
	logsDir := t.TempDir()
	existing := filepath.Join(logsDir, "a.log")
	require.NoError(t, os.WriteFile(existing, []byte("old run\n"), 0o644))

	runner := &fakeRunner{}
	d := &Driver{
		Suite:        testSuite("a", "b"),
		Runner:       runner,
		LogsDir:      logsDir,
		SkipExisting: true,
	}

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, runner.callOrder(), "a's existing log must not be rerun")
	assert.Equal(t, OutcomeSkipped, report.Results[0].Outcome)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, report.Clean())

	content, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Equal(t, "old run\n", string(content), "skipped logs stay untouched")
}

func TestRun_ParallelSlotsResultsBySuiteOrder(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f"}
	runner := &fakeRunner{exitCodes: map[string]int{"d": 2}}
	d := &Driver{
		Suite:   testSuite(names...),
		Runner:  runner,
		LogsDir: t.TempDir(),
		Jobs:    3,
	}

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, len(names))
	for i, res := range report.Results {
		assert.Equal(t, i, res.Seq)
		assert.Equal(t, names[i], res.Name, "result slot %d must match suite order", i)
	}
	assert.Equal(t, OutcomeAnalyzerFailed, report.Results[3].Outcome)
	assert.Equal(t, 5, report.OK)
}

func TestRun_ParallelRespectsJobLimit(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	runner := runnerFunc(func(ctx context.Context, inv suite.Invocation, input, script, logPath string) (*analyzer.Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &analyzer.Result{LogPath: logPath}, nil
	})

	d := &Driver{
		Suite:   testSuite("a", "b", "c", "d", "e", "f", "g", "h"),
		Runner:  runner,
		LogsDir: t.TempDir(),
		Jobs:    2,
	}
	_, err := d.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "never more than Jobs invocations in flight")
	assert.GreaterOrEqual(t, peak, 1)
}

type runnerFunc func(ctx context.Context, inv suite.Invocation, input, script, logPath string) (*analyzer.Result, error)

func (f runnerFunc) Run(ctx context.Context, inv suite.Invocation, input, script, logPath string) (*analyzer.Result, error) {
	return f(ctx, inv, input, script, logPath)
}

func TestRun_CancellationMarksRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	runner := runnerFunc(func(ctx context.Context, inv suite.Invocation, input, script, logPath string) (*analyzer.Result, error) {
		calls++
		if calls == 1 {
			cancel()
			return &analyzer.Result{Canceled: true, LogPath: logPath}, nil
		}
		return &analyzer.Result{LogPath: logPath}, nil
	})

	d := &Driver{
		Suite:   testSuite("a", "b", "c"),
		Runner:  runner,
		LogsDir: t.TempDir(),
	}

	report, err := d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no new invocation starts after cancellation")
	assert.Equal(t, OutcomeCanceled, report.Results[0].Outcome)
	assert.Equal(t, OutcomeCanceled, report.Results[1].Outcome)
	assert.Equal(t, OutcomeCanceled, report.Results[2].Outcome)
	assert.Equal(t, 3, report.Canceled)
}

// orderedObserver asserts callbacks carry consistent seq/invocation pairs.
type orderedObserver struct {
	mu       sync.Mutex
	started  []int
	finished []InvocationResult
}

func (o *orderedObserver) InvocationStarted(seq int, inv suite.Invocation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, seq)
}

func (o *orderedObserver) InvocationFinished(seq int, inv suite.Invocation, res InvocationResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res)
}

func TestRun_ObserverSeesEveryInvocation(t *testing.T) {
	obs := &orderedObserver{}
	d := &Driver{
		Suite:    testSuite("a", "b", "c"),
		Runner:   &fakeRunner{},
		LogsDir:  t.TempDir(),
		Observer: obs,
	}
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, obs.started)
	require.Len(t, obs.finished, 3)
	for i, res := range obs.finished {
		assert.Equal(t, i, res.Seq)
	}
}

func TestRun_Validation(t *testing.T) {
	_, err := (&Driver{Suite: testSuite("a"), LogsDir: t.TempDir()}).Run(context.Background())
	require.Error(t, err, "missing runner")

	_, err = (&Driver{Runner: &fakeRunner{}, LogsDir: t.TempDir()}).Run(context.Background())
	require.Error(t, err, "empty suite")
}

func TestRun_LogsDirCreated(t *testing.T) {
	logsDir := filepath.Join(t.TempDir(), "nested", "logs")
	d := &Driver{
		Suite:   testSuite("a"),
		Runner:  &fakeRunner{},
		LogsDir: logsDir,
	}
	_, err := d.Run(context.Background())
	require.NoError(t, err)

	info, statErr := os.Stat(logsDir)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestReport_LogPathsUnderLogsDir(t *testing.T) {
	logsDir := t.TempDir()
	d := &Driver{
		Suite:   testSuite("a", "b"),
		Runner:  &fakeRunner{},
		LogsDir: logsDir,
	}
	report, err := d.Run(context.Background())
	require.NoError(t, err)
	for _, res := range report.Results {
		assert.Equal(t, filepath.Join(logsDir, fmt.Sprintf("%s.log", res.Name)), res.LogPath)
	}
}
