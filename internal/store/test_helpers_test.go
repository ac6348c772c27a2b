package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/bspgen/internal/testutil"
)

// createTestStore opens a fresh store in a temporary directory with
// deterministic run ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.WithIDs(testutil.NewFixedIDs("run-1", "run-2", "run-3", "run-4"))
}

// createTestRun returns a run with every required field set.
func createTestRun(input, fingerprint string, files ...string) Run {
	return Run{
		Input:       input,
		MCU:         "STM32H747XIHx",
		Fingerprint: fingerprint,
		Template:    "hal",
		Layout:      "one-file",
		Files:       files,
	}
}
