// Package suite defines the declarative model for analyzer benchmark suites.
//
// A suite is the unit of work the harness executes: the two positional file
// arguments every analyzer invocation shares, plus an ordered list of
// invocations. Suites are pure data; expansion and validation never touch the
// filesystem or the environment, so the same suite bytes always produce the
// same invocation list.
package suite

import (
	"fmt"
	"strings"
)

// Params is the tuple of analyzer flags for a single invocation.
//
// The bound fields are optional: a nil pointer means the corresponding flag is
// not passed and the analyzer falls back to its own default. CPU of zero
// likewise omits the --cpu flag. The meaning of every field is internal to the
// analyzer; the harness only carries them through.
type Params struct {
	// Domain selects the analyzer's abstract domain (e.g. "deeppoly",
	// "deeppoly_symbolic"). Required.
	Domain string `yaml:"domain" json:"domain"`

	// MinLower, Lower, Upper, MaxUpper are the integer bound parameters,
	// passed as --min_lower/--lower/--upper/--max_upper when set.
	MinLower *int `yaml:"min_lower,omitempty" json:"min_lower,omitempty"`
	Lower    *int `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper    *int `yaml:"upper,omitempty" json:"upper,omitempty"`
	MaxUpper *int `yaml:"max_upper,omitempty" json:"max_upper,omitempty"`

	// CPU is the analyzer's internal parallelism (--cpu). Zero omits the flag.
	CPU int `yaml:"cpu,omitempty" json:"cpu,omitempty"`
}

// Invocation is one analyzer run within a suite.
//
// Name doubles as the log file stem, so it must be unique within the suite and
// safe to use as a filename. An empty Name is filled in deterministically from
// the params during expansion.
type Invocation struct {
	Name   string `yaml:"name,omitempty" json:"name"`
	Params Params `yaml:"params" json:"params"`
}

// BoundSpec is one rung of a matrix bounds ladder.
type BoundSpec struct {
	MinLower *int `yaml:"min_lower,omitempty"`
	Lower    *int `yaml:"lower,omitempty"`
	Upper    *int `yaml:"upper,omitempty"`
	MaxUpper *int `yaml:"max_upper,omitempty"`
}

// Matrix declares a cross product of parameter axes.
//
// Expansion order is fixed: domains outermost, bounds next, CPU counts
// innermost. This matches the order the hand-written experiment scripts
// enumerated their invocations and keeps log naming stable across runs.
type Matrix struct {
	Domains []string    `yaml:"domains"`
	Bounds  []BoundSpec `yaml:"bounds,omitempty"`
	CPUs    []int       `yaml:"cpus,omitempty"`
}

// Suite is a named benchmark: shared positional arguments plus invocations.
//
// Invocations listed literally come first, in file order; Matrix expansion
// appends after them.
type Suite struct {
	Name string `yaml:"name" json:"name"`

	// Input and Script are the analyzer's two positional arguments,
	// in that order.
	Input  string `yaml:"input" json:"input"`
	Script string `yaml:"script" json:"script"`

	Invocations []Invocation `yaml:"invocations,omitempty" json:"invocations"`
	Matrix      *Matrix      `yaml:"matrix,omitempty" json:"-"`
}

// Validate checks the suite's structural invariants.
//
// It assumes Expand has already run: every invocation must carry a non-empty,
// unique name. Bound ordering is checked only between fields that are present;
// absent bounds are the analyzer's concern, not ours.
func (s *Suite) Validate() error {
	if s == nil {
		return fmt.Errorf("suite is nil")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("suite name is required")
	}
	if strings.TrimSpace(s.Input) == "" {
		return fmt.Errorf("suite %q: input file is required", s.Name)
	}
	if strings.TrimSpace(s.Script) == "" {
		return fmt.Errorf("suite %q: script file is required", s.Name)
	}
	if len(s.Invocations) == 0 {
		return fmt.Errorf("suite %q: at least one invocation is required", s.Name)
	}

	seen := make(map[string]int, len(s.Invocations))
	for i, inv := range s.Invocations {
		if strings.TrimSpace(inv.Name) == "" {
			return fmt.Errorf("suite %q: invocation %d has no name (was Expand called?)", s.Name, i)
		}
		if strings.ContainsAny(inv.Name, "/\\") {
			return fmt.Errorf("suite %q: invocation name %q contains a path separator", s.Name, inv.Name)
		}
		if prev, dup := seen[inv.Name]; dup {
			return fmt.Errorf("suite %q: duplicate invocation name %q (positions %d and %d)", s.Name, inv.Name, prev, i)
		}
		seen[inv.Name] = i

		if err := validateParams(inv.Params); err != nil {
			return fmt.Errorf("suite %q: invocation %q: %w", s.Name, inv.Name, err)
		}
	}
	return nil
}

func validateParams(p Params) error {
	if strings.TrimSpace(p.Domain) == "" {
		return fmt.Errorf("domain is required")
	}
	if p.CPU < 0 {
		return fmt.Errorf("cpu must be >= 1 when set (got %d)", p.CPU)
	}

	// Ordering binds every present bound: min_lower <= lower <= upper <=
	// max_upper. Comparing each present field against the previous present
	// one covers all pairs, absent fields included, by transitivity.
	bounds := []struct {
		name string
		val  *int
	}{
		{"min_lower", p.MinLower},
		{"lower", p.Lower},
		{"upper", p.Upper},
		{"max_upper", p.MaxUpper},
	}
	prev := -1
	for i, b := range bounds {
		if b.val == nil {
			continue
		}
		if prev >= 0 && *bounds[prev].val > *b.val {
			return fmt.Errorf("%s (%d) must not exceed %s (%d)", bounds[prev].name, *bounds[prev].val, b.name, *b.val)
		}
		prev = i
	}
	return nil
}

// Int is a convenience for building bound pointers in literal suites and tests.
func Int(v int) *int { return &v }
