package runlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Manifest is the canonical JSON record written into a run's log directory.
//
// It makes the directory self-describing: which analyzer produced these logs,
// with which positional arguments, and what each log file corresponds to.
// Entries are sorted by sequence before writing so the bytes are stable for a
// given run.
type Manifest struct {
	RunID    string          `json:"run_id"`
	Suite    string          `json:"suite"`
	Analyzer string          `json:"analyzer"`
	Input    string          `json:"input"`
	Script   string          `json:"script"`
	Entries  []ManifestEntry `json:"invocations"`
}

// ManifestEntry describes one captured log file.
type ManifestEntry struct {
	Seq      int             `json:"seq"`
	Name     string          `json:"name"`
	Params   json.RawMessage `json:"params"`
	LogFile  string          `json:"log_file"`
	Outcome  string          `json:"outcome"`
	ExitCode int             `json:"exit_code"`
}

// ManifestFileName is the manifest's name within the log directory.
const ManifestFileName = "manifest.json"

// WriteManifest writes the manifest atomically into dir.
//
// Atomic and durable: full temp-file write, fsync, rename over the final
// name, then directory fsync. A crash mid-write leaves either the old
// manifest or none, never a truncated one.
func WriteManifest(dir string, m Manifest) error {
	if m.RunID == "" {
		return fmt.Errorf("manifest run_id is required")
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Seq < m.Entries[j].Seq })
	if m.Entries == nil {
		m.Entries = []ManifestEntry{}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomicDurable(filepath.Join(dir, ManifestFileName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
