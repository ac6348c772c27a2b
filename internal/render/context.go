package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bspgen/internal/heuristics"
	"github.com/roach88/bspgen/internal/ident"
	"github.com/roach88/bspgen/internal/ir"
)

// Mode is the GPIO mode a pin function implies.
type Mode string

const (
	ModeInput     Mode = "input"
	ModeOutput    Mode = "output"
	ModeAlternate Mode = "alternate"
	ModeAnalog    Mode = "analog"
)

// Bits returns the two-bit MODER encoding.
func (m Mode) Bits() uint32 {
	switch m {
	case ModeOutput:
		return 0b01
	case ModeAlternate:
		return 0b10
	case ModeAnalog:
		return 0b11
	}
	return 0b00
}

var analogPrefixes = []string{"ADC", "DAC", "COMP", "OPAMP"}

// ModeOf classifies a pin by its function.
func ModeOf(p ir.Pin) Mode {
	switch {
	case p.Func == "GPIO_Output":
		return ModeOutput
	case p.Func == "GPIO_Input", strings.HasPrefix(p.Func, "GPIO_EXTI"):
		return ModeInput
	case p.Func == "GPIO_Analog":
		return ModeAnalog
	}
	for _, prefix := range analogPrefixes {
		if strings.HasPrefix(p.Func, prefix) {
			return ModeAnalog
		}
	}
	if strings.HasPrefix(p.Func, "GPIO") {
		return ModeInput
	}
	return ModeAlternate
}

// Context is the data every template is executed with.
type Context struct {
	Spec            *ir.Ir
	GroupedWrites   bool
	WithDeinit      bool
	UseLabelNames   bool
	EmitLabelConsts bool

	// Idents maps pin name to label identifier. It is filled when label
	// names or label constants are requested.
	Idents map[string]string

	// ModName is the peripheral being rendered in PerPeripheral layout.
	ModName string

	// InitBy and Core are "cm7", "cm4" or "".
	InitBy string
	Core   string

	// InitClocks is true when this output should configure the clock tree:
	// no target core, no owner, or the target core is the owner.
	InitClocks bool

	Fingerprint      string
	GeneratorVersion string

	// Modules lists the sub-modules of an aggregator file.
	Modules []string
}

// NewContext builds the template context for x. Label identifiers are
// assigned over the whole board so per-peripheral files agree on names.
func NewContext(x *ir.Ir, opts Options) (*Context, error) {
	ctx := &Context{
		Spec:             x,
		GroupedWrites:    opts.GroupedWrites,
		WithDeinit:       opts.WithDeinit,
		UseLabelNames:    opts.UseLabelNames,
		EmitLabelConsts:  opts.EmitLabelConsts,
		InitBy:           heuristics.CoreMarker(x.Clocks.InitBy),
		Core:             heuristics.CoreMarker(opts.Core),
		GeneratorVersion: ir.GeneratorVersion,
	}
	ctx.InitClocks = ctx.Core == "" || ctx.InitBy == "" || ctx.InitBy == ctx.Core

	if opts.UseLabelNames || opts.EmitLabelConsts {
		idents, err := ident.Assign(x.Pinctrl, ident.Options{
			Prefix:          opts.LabelPrefix,
			FailOnDuplicate: opts.FailOnDuplicateLabels,
		})
		if err != nil {
			return nil, err
		}
		ctx.Idents = make(map[string]string, idents.Len())
		for _, e := range idents.Entries() {
			ctx.Idents[e.Key] = e.Value
		}
	}

	fp, err := ir.Fingerprint(x)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	ctx.Fingerprint = fp
	return ctx, nil
}

// with returns a copy of c rendering sub as module name.
func (c *Context) with(sub *ir.Ir, name string) *Context {
	out := *c
	out.Spec = sub
	out.ModName = name
	return &out
}

// PinView is a pin with everything templates derive from it.
type PinView struct {
	Name  string // "PA9"
	Func  string
	Label string // "" when unlabelled
	AF    uint8
	Port  string // "A"
	Num   int
	Mode  Mode
	Var   string // label identifier or lower-case pin name
	Ident string // label identifier, "" when none

	// Superseded is set when a later Pinctrl entry configures the same pin.
	Superseded bool
}

// Lower returns the lower-case port letter.
func (p PinView) Lower() string {
	return strings.ToLower(p.Port)
}

// Comment describes the pin: "PA9 USART1_TX AF7 (STLINK_RX)".
func (p PinView) Comment() string {
	s := fmt.Sprintf("%s %s AF%d", p.Name, p.Func, p.AF)
	if p.Label != "" {
		s += " (" + p.Label + ")"
	}
	return s
}

// ModerShift is the bit offset of the pin in MODER.
func (p PinView) ModerShift() int {
	return p.Num * 2
}

// AFRegister is "afrl" for pins 0-7 and "afrh" for 8-15.
func (p PinView) AFRegister() string {
	if p.Num < 8 {
		return "afrl"
	}
	return "afrh"
}

// AFShift is the bit offset of the pin in its AFR register.
func (p PinView) AFShift() int {
	return (p.Num % 8) * 4
}

// Pins returns every pin in Pinctrl order. A pin listed more than once
// keeps every entry; all but the last are marked Superseded.
func (c *Context) Pins() []PinView {
	last := make(map[string]int, len(c.Spec.Pinctrl))
	for i, p := range c.Spec.Pinctrl {
		last[p.Pin] = i
	}
	out := make([]PinView, 0, len(c.Spec.Pinctrl))
	for i, p := range c.Spec.Pinctrl {
		port, num, _ := ir.ParsePinName(p.Pin)
		v := PinView{
			Name:  p.Pin,
			Func:  p.Func,
			Label: p.LabelOr(""),
			AF:    p.AF,
			Port:  string(port),
			Num:   num,
			Mode:  ModeOf(p),
			Var:   strings.ToLower(p.Pin),

			Superseded: last[p.Pin] != i,
		}
		if id, ok := c.Idents[p.Pin]; ok {
			v.Ident = id
			if c.UseLabelNames {
				v.Var = id
			}
		}
		out = append(out, v)
	}
	return out
}

// SortedPins returns the pins ordered by name, duplicates in Pinctrl order.
func (c *Context) SortedPins() []PinView {
	pins := c.Pins()
	sort.SliceStable(pins, func(i, j int) bool { return pins[i].Name < pins[j].Name })
	return pins
}

// PortView groups the pins of one GPIO port with the register images a
// grouped write applies. Each mask covers the fields of the port's pins and
// each value holds their new contents; a pin listed twice takes its last
// setting.
type PortView struct {
	Letter string
	Pins   []PinView

	ModerMask, ModerValue uint32
	AFRLMask, AFRLValue   uint32
	AFRHMask, AFRHValue   uint32
}

// Lower returns the lower-case port letter.
func (p PortView) Lower() string {
	return strings.ToLower(p.Letter)
}

// Ports groups pins by port letter, ports and pins in ascending order.
func (c *Context) Ports() []PortView {
	byPort := make(map[string]*PortView)
	var letters []string
	for _, p := range c.Pins() {
		pv, ok := byPort[p.Port]
		if !ok {
			pv = &PortView{Letter: p.Port}
			byPort[p.Port] = pv
			letters = append(letters, p.Port)
		}
		pv.Pins = append(pv.Pins, p)
		if p.Num > 15 {
			continue
		}
		shift := uint(p.ModerShift())
		pv.ModerMask |= 0b11 << shift
		pv.ModerValue = pv.ModerValue&^(0b11<<shift) | p.Mode.Bits()<<shift
		if p.Mode != ModeAlternate {
			continue
		}
		afShift := uint(p.AFShift())
		if p.Num < 8 {
			pv.AFRLMask |= 0xF << afShift
			pv.AFRLValue = pv.AFRLValue&^(0xF<<afShift) | uint32(p.AF&0xF)<<afShift
		} else {
			pv.AFRHMask |= 0xF << afShift
			pv.AFRHValue = pv.AFRHValue&^(0xF<<afShift) | uint32(p.AF&0xF)<<afShift
		}
	}
	sort.Strings(letters)
	out := make([]PortView, 0, len(letters))
	for _, l := range letters {
		pv := byPort[l]
		sort.SliceStable(pv.Pins, func(i, j int) bool { return pv.Pins[i].Num < pv.Pins[j].Num })
		out = append(out, *pv)
	}
	return out
}

// LabelConst is a named pin constant.
type LabelConst struct {
	Name string // upper-case identifier
	Pin  PinView
}

// LabelConsts returns one constant per labelled pin, in Pinctrl order.
func (c *Context) LabelConsts() []LabelConst {
	var out []LabelConst
	for _, p := range c.Pins() {
		if p.Ident == "" {
			continue
		}
		out = append(out, LabelConst{Name: strings.ToUpper(p.Ident), Pin: p})
	}
	return out
}

// Peripherals returns the peripherals in discovery order.
func (c *Context) Peripherals() []ir.Entry[ir.Peripheral] {
	return c.Spec.Peripherals.Entries()
}
