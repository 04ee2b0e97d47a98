package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"librabench/internal/suite"
)

func TestBuildArgs_AllFlags(t *testing.T) {
	p := suite.Params{
		Domain:   "deeppoly_symbolic",
		MinLower: suite.Int(-4),
		Lower:    suite.Int(-2),
		Upper:    suite.Int(2),
		MaxUpper: suite.Int(4),
		CPU:      8,
	}
	got := BuildArgs("census.py", "census-spec.py", p)
	assert.Equal(t, []string{
		"census.py", "census-spec.py",
		"--domain", "deeppoly_symbolic",
		"--min_lower", "-4",
		"--lower", "-2",
		"--upper", "2",
		"--max_upper", "4",
		"--cpu", "8",
	}, got)
}

func TestBuildArgs_OmitsUnsetFlags(t *testing.T) {
	got := BuildArgs("in.py", "spec.py", suite.Params{Domain: "deeppoly"})
	assert.Equal(t, []string{"in.py", "spec.py", "--domain", "deeppoly"}, got)
}

func TestBuildArgs_PartialBounds(t *testing.T) {
	p := suite.Params{Domain: "deeppoly", Lower: suite.Int(-1), Upper: suite.Int(1), CPU: 4}
	got := BuildArgs("in.py", "spec.py", p)
	assert.Equal(t, []string{
		"in.py", "spec.py",
		"--domain", "deeppoly",
		"--lower", "-1",
		"--upper", "1",
		"--cpu", "4",
	}, got)
}

func TestCommandLine(t *testing.T) {
	got := CommandLine("/opt/libra", "in.py", "spec.py", suite.Params{Domain: "deeppoly"})
	assert.Equal(t, []string{"/opt/libra", "in.py", "spec.py", "--domain", "deeppoly"}, got)
}
