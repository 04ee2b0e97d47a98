package suite

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a suite definition from a YAML file, expands it, and validates
// the result. The returned suite is ready to run.
func Load(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("reading suite file: %w", err)
	}
	return Parse(data)
}

// Parse decodes suite YAML bytes. Unknown fields are rejected so a typo in a
// flag name fails loudly instead of silently dropping a parameter.
func Parse(data []byte) (Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Suite{}, fmt.Errorf("parsing suite: %w", err)
	}

	expanded, err := Expand(s)
	if err != nil {
		return Suite{}, err
	}
	if err := expanded.Validate(); err != nil {
		return Suite{}, err
	}
	return expanded, nil
}
