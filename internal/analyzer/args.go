// Package analyzer builds and runs invocations of the external LIBRA
// analyzer binary.
//
// The analyzer is an opaque collaborator: it accepts two positional file
// arguments and a handful of flags, writes its results to standard output,
// and reports via its exit code. This package owns the exact argv contract
// and the capture of each invocation's output into its log file.
package analyzer

import (
	"strconv"

	"librabench/internal/suite"
)

// BuildArgs assembles the analyzer's argument vector for one invocation.
//
// The shape is fixed: the two positional file paths first, then --domain,
// then whichever bound flags are set in min_lower, lower, upper, max_upper
// order, then --cpu. Unset bounds and a zero CPU are omitted entirely so the
// analyzer applies its own defaults.
func BuildArgs(input, script string, p suite.Params) []string {
	args := []string{input, script, "--domain", p.Domain}
	if p.MinLower != nil {
		args = append(args, "--min_lower", strconv.Itoa(*p.MinLower))
	}
	if p.Lower != nil {
		args = append(args, "--lower", strconv.Itoa(*p.Lower))
	}
	if p.Upper != nil {
		args = append(args, "--upper", strconv.Itoa(*p.Upper))
	}
	if p.MaxUpper != nil {
		args = append(args, "--max_upper", strconv.Itoa(*p.MaxUpper))
	}
	if p.CPU > 0 {
		args = append(args, "--cpu", strconv.Itoa(p.CPU))
	}
	return args
}

// CommandLine renders the full command for display (plan output, logs).
func CommandLine(binary, input, script string, p suite.Params) []string {
	return append([]string{binary}, BuildArgs(input, script, p)...)
}
