// Package config supplies environment-backed defaults for CLI flags.
//
// Flags are always authoritative; the environment only moves a default, so a
// run's behavior is fully visible on its command line.
package config

import (
	"os"
	"strconv"
)

// Defaults are the flag defaults after consulting the environment.
type Defaults struct {
	// LogsDir is where per-invocation log files and the manifest go.
	// LIBRABENCH_LOGS_DIR.
	LogsDir string

	// HistoryDB is the SQLite run-history path. LIBRABENCH_DB.
	HistoryDB string

	// Jobs is the worker pool size. LIBRABENCH_JOBS.
	Jobs int

	// LogLevel is the harness's structured-log level. LIBRABENCH_LOG_LEVEL.
	LogLevel string
}

// Load reads defaults from the environment, falling back to built-ins.
func Load() Defaults {
	return Defaults{
		LogsDir:   getEnv("LIBRABENCH_LOGS_DIR", "logs"),
		HistoryDB: getEnv("LIBRABENCH_DB", "librabench.db"),
		Jobs:      getEnvInt("LIBRABENCH_JOBS", 1),
		LogLevel:  getEnv("LIBRABENCH_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
