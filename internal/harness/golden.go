package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bspgen/internal/ir"
)

// Snapshot renders the parts of a result that must stay stable across
// runs as canonical JSON: the MCU, the generated file names, the pin
// configuration and the peripherals. A failed generation snapshots its
// error code.
func Snapshot(name string, r *Result) ([]byte, error) {
	snap := map[string]any{"scenario_name": name}
	if r.ErrorCode != "" {
		snap["error"] = string(r.ErrorCode)
	}
	if r.IR != nil {
		snap["mcu"] = r.MCU
		snap["files"] = toAnySlice(r.Files)
		snap["pinctrl"] = pinctrlSnapshot(r.IR.Pinctrl)
		snap["peripherals"] = peripheralSnapshot(r.IR.Peripherals)
	}
	return ir.MarshalCanonical(snap)
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func pinctrlSnapshot(pins []ir.Pin) []any {
	out := make([]any, len(pins))
	for i, p := range pins {
		m := map[string]any{
			"pin":  p.Pin,
			"func": p.Func,
			"af":   p.AF,
		}
		if p.Label != nil {
			m["label"] = *p.Label
		}
		out[i] = m
	}
	return out
}

func peripheralSnapshot(ps ir.OrderedMap[ir.Peripheral]) map[string]any {
	out := make(map[string]any, ps.Len())
	for _, e := range ps.Entries() {
		signals := make(map[string]any, e.Value.Signals.Len())
		for _, s := range e.Value.Signals.Entries() {
			signals[s.Key] = s.Value
		}
		m := map[string]any{
			"class":   e.Value.Class,
			"signals": signals,
		}
		if e.Value.Core != nil {
			m["core"] = e.Value.Core.String()
		}
		out[e.Key] = m
	}
	return out
}

// GoldenPath returns the golden file of the scenario at scenarioFile:
// golden/<file name without extension>.golden next to it.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// CompareGolden reports whether the snapshot of r matches the golden file.
// A missing golden file is an error wrapping fs.ErrNotExist.
func CompareGolden(name string, r *Result, goldenPath string) (bool, error) {
	want, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, err
	}
	got, err := Snapshot(name, r)
	if err != nil {
		return false, fmt.Errorf("failed to snapshot result: %w", err)
	}
	return string(want) == string(got), nil
}

// UpdateGolden writes the snapshot of r as the golden file.
func UpdateGolden(name string, r *Result, goldenPath string) error {
	data, err := Snapshot(name, r)
	if err != nil {
		return fmt.Errorf("failed to snapshot result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// AssertGolden compares the snapshot of r against
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *Result) {
	t.Helper()

	data, err := Snapshot(name, r)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
