// Package cli implements the librabench command surface.
//
// The boundary discipline: every command canonicalizes its flags and
// arguments into a plain invocation struct before any engine code runs.
// Engine packages never see cobra, the environment, or the process CWD.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"librabench/internal/suite"
)

// Semantic exit codes.
//
// Analyzer exit codes are data, not harness failures: a run in which every
// invocation executed exits 0 even if some analyzer invocations returned
// non-zero, matching the original experiment scripts. --strict tightens that.
const (
	ExitSuccess           = 0
	ExitRunFailure        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// CodedError carries a semantic exit code alongside the message.
type CodedError struct {
	Code    int
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *CodedError) Unwrap() error { return e.Cause }

func invalidf(format string, args ...any) error {
	return &CodedError{Code: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErr(err error) error {
	return &CodedError{Code: ExitConfigError, Message: err.Error(), Cause: err}
}

// ExitCodeFor maps an error to its semantic exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var coded *CodedError
	if errors.As(err, &coded) && coded != nil && coded.Code != 0 {
		return coded.Code
	}
	return ExitInternalError
}

// runInvocation is the canonical description of a `run` (or `plan`) command:
// all paths cleaned, relative paths resolved under the working directory, and
// the suite fully expanded and validated.
type runInvocation struct {
	Analyzer  string
	WorkDir   string
	LogsDir   string
	HistoryDB string

	Suite suite.Suite

	Jobs         int
	SkipExisting bool
	Strict       bool
	DryRun       bool
	Quiet        bool
}

// suiteSelection is the raw flag state naming which suite to run.
type suiteSelection struct {
	SuiteFile string
	Builtin   string
	Input     string
	Script    string
}

// resolveSuite loads the selected suite, from YAML or from the built-in set.
//
// Exactly one of --suite and --builtin must be given. Built-in suites carry
// no positional file arguments, so --input and --script are required with
// --builtin; with --suite they override the file's values when set.
func resolveSuite(sel suiteSelection) (suite.Suite, error) {
	switch {
	case sel.SuiteFile != "" && sel.Builtin != "":
		return suite.Suite{}, invalidf("--suite and --builtin are mutually exclusive")
	case sel.SuiteFile == "" && sel.Builtin == "":
		return suite.Suite{}, invalidf("one of --suite or --builtin is required")
	}

	if sel.Builtin != "" {
		if sel.Input == "" || sel.Script == "" {
			return suite.Suite{}, invalidf("--builtin requires --input and --script")
		}
		s, err := suite.Builtin(sel.Builtin, sel.Input, sel.Script)
		if err != nil {
			return suite.Suite{}, configErr(err)
		}
		return s, nil
	}

	s, err := suite.Load(sel.SuiteFile)
	if err != nil {
		return suite.Suite{}, configErr(err)
	}
	if sel.Input != "" {
		s.Input = sel.Input
	}
	if sel.Script != "" {
		s.Script = sel.Script
	}
	if err := s.Validate(); err != nil {
		return suite.Suite{}, configErr(err)
	}
	return s, nil
}

// resolveUnderWorkDir canonicalizes p: absolute paths pass through cleaned,
// relative paths resolve under workDir. workDir must already be absolute, so
// the process CWD is never consulted here.
func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}
