package suite

import (
	"fmt"
	"sort"
)

// Built-in suites reproduce the parameter enumerations of the original
// hand-written experiment scripts. They carry no positional file arguments of
// their own; callers supply input and script before validation.
var builtins = map[string]Suite{
	"bounds-sweep": {
		Name: "bounds-sweep",
		Matrix: &Matrix{
			Domains: []string{"deeppoly", "deeppoly_symbolic"},
			Bounds: []BoundSpec{
				{MinLower: Int(-3), Lower: Int(-1), Upper: Int(1), MaxUpper: Int(3)},
				{MinLower: Int(-4), Lower: Int(-2), Upper: Int(2), MaxUpper: Int(4)},
				{MinLower: Int(-5), Lower: Int(-3), Upper: Int(3), MaxUpper: Int(5)},
			},
			CPUs: []int{4},
		},
	},
	"cpu-sweep": {
		Name: "cpu-sweep",
		Matrix: &Matrix{
			Domains: []string{"deeppoly_symbolic"},
			Bounds: []BoundSpec{
				{Lower: Int(-1), Upper: Int(1)},
			},
			CPUs: []int{1, 2, 4, 8, 16, 32, 64},
		},
	},
	"domain-compare": {
		Name: "domain-compare",
		Matrix: &Matrix{
			Domains: []string{"deeppoly", "deeppoly_symbolic"},
			Bounds: []BoundSpec{
				{Lower: Int(-1), Upper: Int(1)},
				{Lower: Int(-2), Upper: Int(2)},
			},
			CPUs: []int{8},
		},
	},
}

// Builtin returns the named built-in suite with the positional arguments
// filled in, expanded and validated.
func Builtin(name, input, script string) (Suite, error) {
	base, ok := builtins[name]
	if !ok {
		return Suite{}, fmt.Errorf("unknown built-in suite %q (known: %v)", name, BuiltinNames())
	}
	base.Input = input
	base.Script = script

	expanded, err := Expand(base)
	if err != nil {
		return Suite{}, err
	}
	if err := expanded.Validate(); err != nil {
		return Suite{}, err
	}
	return expanded, nil
}

// BuiltinNames lists the built-in suite names in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinSize reports how many invocations the named built-in suite expands
// to, without requiring positional arguments.
func BuiltinSize(name string) (int, error) {
	base, ok := builtins[name]
	if !ok {
		return 0, fmt.Errorf("unknown built-in suite %q", name)
	}
	expanded, err := Expand(base)
	if err != nil {
		return 0, err
	}
	return len(expanded.Invocations), nil
}
