package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bspgen/internal/heuristics"
	"github.com/roach88/bspgen/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against r and returns the
// failure messages, in assertion order.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(r, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertPinAF:
		return assertPinAF(r.IR, a)
	case AssertPinLabel:
		return assertPinLabel(r.IR, a)
	case AssertPeripheral:
		return assertPeripheral(r.IR, a)
	case AssertInitBy:
		return assertInitBy(r.IR, a)
	case AssertFileContains:
		return assertFileContains(r, a)
	case AssertFileCount:
		return assertFileCount(r, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

// findPin returns the last pinctrl entry for pin carrying signal, or for
// pin alone when signal is empty. A later duplicate wins, as in the
// grouped register writes.
func findPin(x *ir.Ir, pin, signal string) (ir.Pin, bool) {
	var found ir.Pin
	ok := false
	for _, p := range x.Pinctrl {
		if p.Pin == pin && (signal == "" || p.Func == signal) {
			found, ok = p, true
		}
	}
	return found, ok
}

func assertPinAF(x *ir.Ir, a Assertion) error {
	p, ok := findPin(x, a.Pin, a.Signal)
	if !ok {
		return &AssertionError{
			Type:     AssertPinAF,
			Expected: fmt.Sprintf("%s %s AF%d", a.Pin, a.Signal, *a.AF),
			Actual:   "pin not configured",
		}
	}
	if int(p.AF) != *a.AF {
		return &AssertionError{
			Type:     AssertPinAF,
			Expected: fmt.Sprintf("%s %s AF%d", a.Pin, a.Signal, *a.AF),
			Actual:   fmt.Sprintf("AF%d", p.AF),
		}
	}
	return nil
}

func assertPinLabel(x *ir.Ir, a Assertion) error {
	p, ok := findPin(x, a.Pin, "")
	if !ok {
		return &AssertionError{
			Type:     AssertPinLabel,
			Expected: fmt.Sprintf("%s labelled %q", a.Pin, a.Label),
			Actual:   "pin not configured",
		}
	}
	if got := p.LabelOr(""); got != a.Label {
		return &AssertionError{
			Type:     AssertPinLabel,
			Expected: fmt.Sprintf("%s labelled %q", a.Pin, a.Label),
			Actual:   fmt.Sprintf("label %q", got),
		}
	}
	return nil
}

func assertPeripheral(x *ir.Ir, a Assertion) error {
	p, ok := x.Peripherals.Get(a.Name)
	if !ok {
		return &AssertionError{
			Type:     AssertPeripheral,
			Expected: fmt.Sprintf("peripheral %s", a.Name),
			Actual:   fmt.Sprintf("peripherals %v", x.Peripherals.Keys()),
		}
	}
	if a.Class != "" && p.Class != a.Class {
		return &AssertionError{
			Type:     AssertPeripheral,
			Expected: fmt.Sprintf("%s class %s", a.Name, a.Class),
			Actual:   fmt.Sprintf("class %s", p.Class),
		}
	}
	if a.Core != "" {
		if got := heuristics.CoreMarker(p.Core); got != strings.ToLower(a.Core) {
			return &AssertionError{
				Type:     AssertPeripheral,
				Expected: fmt.Sprintf("%s owned by %s", a.Name, a.Core),
				Actual:   fmt.Sprintf("owner %q", got),
			}
		}
	}

	// Subset match on signals, reported in role order.
	roles := make([]string, 0, len(a.Signals))
	for role := range a.Signals {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		want := a.Signals[role]
		if got, _ := p.Signals.Get(role); got != want {
			return &AssertionError{
				Type:     AssertPeripheral,
				Expected: fmt.Sprintf("%s.%s on %s", a.Name, role, want),
				Actual:   fmt.Sprintf("%s.%s on %q", a.Name, role, got),
			}
		}
	}
	return nil
}

func assertInitBy(x *ir.Ir, a Assertion) error {
	got := heuristics.CoreMarker(x.Clocks.InitBy)
	if got != strings.ToLower(a.Core) {
		return &AssertionError{
			Type:     AssertInitBy,
			Expected: fmt.Sprintf("clocks initialized by %q", a.Core),
			Actual:   fmt.Sprintf("%q", got),
		}
	}
	return nil
}

func assertFileContains(r *Result, a Assertion) error {
	content, ok := r.Outputs[a.File]
	if !ok {
		return &AssertionError{
			Type:     AssertFileContains,
			Expected: fmt.Sprintf("file %s", a.File),
			Actual:   fmt.Sprintf("generated %v", r.Files),
		}
	}
	if !strings.Contains(content, a.Contains) {
		return &AssertionError{
			Type:     AssertFileContains,
			Expected: fmt.Sprintf("%s containing %q", a.File, a.Contains),
			Actual:   "text not found",
		}
	}
	return nil
}

func assertFileCount(r *Result, a Assertion) error {
	if len(r.Files) != *a.Count {
		return &AssertionError{
			Type:     AssertFileCount,
			Expected: fmt.Sprintf("%d generated file(s)", *a.Count),
			Actual:   fmt.Sprintf("%d: %v", len(r.Files), r.Files),
		}
	}
	return nil
}
