package ir

import (
	"fmt"
	"regexp"
	"strconv"
)

var pinNameRe = regexp.MustCompile(`^P([A-Z])(\d+)$`)

// ParsePinName splits "PA9" into port letter 'A' and number 9.
func ParsePinName(name string) (port byte, num int, ok bool) {
	m := pinNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return m[1][0], n, true
}

// Validate checks the structural invariants renderers depend on:
//   - every pin name is a port letter followed by a number
//   - every peripheral has at least one signal
//   - every signal references a pin present in Pinctrl
func (x *Ir) Validate() error {
	known := make(map[string]bool, len(x.Pinctrl))
	for i, p := range x.Pinctrl {
		if _, _, ok := ParsePinName(p.Pin); !ok {
			return NewInvalidIR(fmt.Sprintf("pinctrl[%d]", i), fmt.Sprintf("malformed pin name %q", p.Pin))
		}
		known[p.Pin] = true
	}
	for _, e := range x.Peripherals.Entries() {
		if e.Value.Signals.Len() == 0 {
			return NewInvalidIR(e.Key, fmt.Sprintf("peripheral %s has no active pins", e.Key))
		}
		for _, sig := range e.Value.Signals.Entries() {
			if !known[sig.Value] {
				return NewInvalidIR(e.Key, fmt.Sprintf("peripheral %s missing pin %s for %s", e.Key, sig.Value, sig.Key))
			}
		}
	}
	return nil
}

// Clone returns a deep copy of x. Heuristics mutate clones, never the original.
func (x *Ir) Clone() *Ir {
	out := &Ir{
		MCU:     x.MCU,
		Package: x.Package,
		Clocks: Clocks{
			PLL:     x.Clocks.PLL.Clone(),
			Kernels: x.Clocks.Kernels.Clone(),
		},
	}
	if x.Clocks.InitBy != nil {
		out.Clocks.InitBy = CorePtr(*x.Clocks.InitBy)
	}
	if x.Pinctrl != nil {
		out.Pinctrl = make([]Pin, len(x.Pinctrl))
		for i, p := range x.Pinctrl {
			out.Pinctrl[i] = p.clone()
		}
	}
	for _, e := range x.Peripherals.Entries() {
		out.Peripherals.Set(e.Key, e.Value.clone())
	}
	return out
}

// Subset returns a copy of x holding only the peripherals accepted by keep
// (in x's order) and the pins their signals reference. Clocks are kept whole.
func (x *Ir) Subset(keep func(name string, p Peripheral) bool) *Ir {
	out := &Ir{
		MCU:     x.MCU,
		Package: x.Package,
		Clocks:  x.Clone().Clocks,
	}
	for _, e := range x.Peripherals.Entries() {
		if keep(e.Key, e.Value) {
			out.Peripherals.Set(e.Key, e.Value.clone())
		}
	}
	for _, p := range x.Pinctrl {
		for _, per := range out.Peripherals.Values() {
			if per.References(p.Pin) {
				out.Pinctrl = append(out.Pinctrl, p.clone())
				break
			}
		}
	}
	return out
}

func (p Pin) clone() Pin {
	if p.Label != nil {
		p.Label = StringPtr(*p.Label)
	}
	return p
}

func (p Peripheral) clone() Peripheral {
	p.Signals = p.Signals.Clone()
	if p.Core != nil {
		p.Core = CorePtr(*p.Core)
	}
	return p
}
