package main

import (
	"os"

	"librabench/internal/cli"
)

// main stays thin: all flag handling, exit-code mapping, and wiring live in
// internal/cli so black-box tests can drive the same code path.
func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
