package suite

import (
	"fmt"
	"strings"
)

// Expand materializes the suite's Matrix (if any) into concrete invocations
// and fills in default names, returning a suite whose Invocations list is
// final. The input suite is not mutated.
//
// Determinism: literal invocations keep their file order; matrix rows are
// appended in domains x bounds x cpus order. Expanding the same suite twice
// yields identical results.
func Expand(s Suite) (Suite, error) {
	out := s
	out.Invocations = make([]Invocation, 0, len(s.Invocations))
	out.Invocations = append(out.Invocations, s.Invocations...)
	out.Matrix = nil

	if s.Matrix != nil {
		rows, err := expandMatrix(*s.Matrix)
		if err != nil {
			return Suite{}, fmt.Errorf("suite %q: %w", s.Name, err)
		}
		out.Invocations = append(out.Invocations, rows...)
	}

	for i := range out.Invocations {
		if strings.TrimSpace(out.Invocations[i].Name) != "" {
			continue
		}
		out.Invocations[i].Name = Slug(out.Invocations[i].Params)
	}
	return out, nil
}

func expandMatrix(m Matrix) ([]Invocation, error) {
	if len(m.Domains) == 0 {
		return nil, fmt.Errorf("matrix requires at least one domain")
	}

	// Absent axes contribute a single neutral element so the product is
	// never empty.
	bounds := m.Bounds
	if len(bounds) == 0 {
		bounds = []BoundSpec{{}}
	}
	cpus := m.CPUs
	if len(cpus) == 0 {
		cpus = []int{0}
	}

	rows := make([]Invocation, 0, len(m.Domains)*len(bounds)*len(cpus))
	for _, domain := range m.Domains {
		for _, b := range bounds {
			for _, cpu := range cpus {
				rows = append(rows, Invocation{
					Params: Params{
						Domain:   domain,
						MinLower: b.MinLower,
						Lower:    b.Lower,
						Upper:    b.Upper,
						MaxUpper: b.MaxUpper,
						CPU:      cpu,
					},
				})
			}
		}
	}
	return rows, nil
}

// Slug derives a deterministic, filename-safe name from an invocation's
// params. Only set fields contribute, in the same order the flags are passed,
// so the slug reads like the command line it stands for.
func Slug(p Params) string {
	parts := []string{p.Domain}
	if p.MinLower != nil {
		parts = append(parts, fmt.Sprintf("ml%d", *p.MinLower))
	}
	if p.Lower != nil {
		parts = append(parts, fmt.Sprintf("l%d", *p.Lower))
	}
	if p.Upper != nil {
		parts = append(parts, fmt.Sprintf("u%d", *p.Upper))
	}
	if p.MaxUpper != nil {
		parts = append(parts, fmt.Sprintf("mu%d", *p.MaxUpper))
	}
	if p.CPU > 0 {
		parts = append(parts, fmt.Sprintf("cpu%d", p.CPU))
	}
	return strings.Join(parts, "_")
}

// LogFileName is the per-invocation log file name: the invocation name plus
// the ".log" extension. Callers join it under the run's log directory.
func LogFileName(inv Invocation) string {
	return inv.Name + ".log"
}
