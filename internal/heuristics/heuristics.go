// Package heuristics applies clock and ownership defaults to an IR and
// filters it down to one core or one peripheral.
//
// Every function takes the IR by pointer and returns a new IR; the input is
// never modified.
package heuristics

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/bspgen/internal/ir"
)

// DualCorePrefixes are the part-number prefixes of dual-core (Cortex-M7 +
// Cortex-M4) parts whose clock tree defaults to the M7.
var DualCorePrefixes = []string{"STM32H745", "STM32H747", "STM32H755", "STM32H757"}

// IsDualCore reports whether mcu is a known dual-core part.
func IsDualCore(mcu string) bool {
	for _, p := range DualCorePrefixes {
		if strings.HasPrefix(mcu, p) {
			return true
		}
	}
	return false
}

// DefaultInitBy sets Clocks.InitBy. An override always wins; otherwise an
// existing value is kept; otherwise dual-core parts default to cm7.
func DefaultInitBy(x *ir.Ir, override *ir.Core) *ir.Ir {
	out := x.Clone()
	switch {
	case override != nil:
		out.Clocks.InitBy = ir.CorePtr(*override)
	case out.Clocks.InitBy != nil:
	case IsDualCore(out.MCU):
		out.Clocks.InitBy = ir.CorePtr(ir.CoreCM7)
	}
	return out
}

// ApplyOwners sets Peripheral.Core for each peripheral named in owners.
// Unknown names are logged and skipped.
func ApplyOwners(x *ir.Ir, owners map[string]ir.Core) *ir.Ir {
	out := x.Clone()
	for name, core := range owners {
		p, ok := out.Peripherals.Get(name)
		if !ok {
			slog.Warn("owner for unknown peripheral", "peripheral", name, "core", core)
			continue
		}
		p.Core = ir.CorePtr(core)
		out.Peripherals.Set(name, p)
	}
	return out
}

// ParseCore parses a core flag value.
func ParseCore(s string) (ir.Core, error) {
	core, ok := ir.ParseCore(s)
	if !ok {
		return "", fmt.Errorf("invalid core %q (expected cm7 or cm4)", s)
	}
	return core, nil
}

// ParseOwners parses "usart1=cm4,spi1=cm7". Entries may also be given as
// separate values; empty entries are ignored.
func ParseOwners(specs ...string) (map[string]ir.Core, error) {
	owners := make(map[string]ir.Core)
	for _, spec := range specs {
		for _, entry := range strings.Split(spec, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			name, val, ok := strings.Cut(entry, "=")
			name = strings.ToLower(strings.TrimSpace(name))
			if !ok || name == "" {
				return nil, fmt.Errorf("invalid owner %q (expected peripheral=core)", entry)
			}
			core, err := ParseCore(val)
			if err != nil {
				return nil, fmt.Errorf("owner %s: %w", name, err)
			}
			owners[name] = core
		}
	}
	return owners, nil
}

// FilterByCore keeps the peripherals owned by core and the pins they use.
// When no peripheral is owned by core the input is returned unchanged (as a
// copy) and a warning is logged, so a board without ownership data still
// renders in full.
func FilterByCore(x *ir.Ir, core ir.Core) *ir.Ir {
	out := x.Subset(func(_ string, p ir.Peripheral) bool {
		return p.Core != nil && *p.Core == core
	})
	if out.Peripherals.Len() == 0 {
		slog.Warn("no peripherals owned by core; emitting unfiltered board",
			"core", core,
			"mcu", x.MCU,
			"peripherals", x.Peripherals.Len())
		return x.Clone()
	}
	return out
}

// SubsetForPeripheral returns an IR with only the named peripheral and the
// pins it references.
func SubsetForPeripheral(x *ir.Ir, name string) (*ir.Ir, error) {
	if !x.Peripherals.Has(name) {
		return nil, fmt.Errorf("unknown peripheral %q", name)
	}
	return x.Subset(func(n string, _ ir.Peripheral) bool { return n == name }), nil
}

// CoreMarker returns the template string for an optional core: "cm7", "cm4"
// or "" when unset.
func CoreMarker(c *ir.Core) string {
	if c == nil {
		return ""
	}
	return c.String()
}
