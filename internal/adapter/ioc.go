// Package adapter converts vendor board descriptions into the IR.
//
// Three front ends are provided: CubeMX .ioc projects (ParseIOC, IOCToIR),
// vendor YAML overlays that already follow the IR schema (YAMLToIR) and a
// best-effort pattern extractor for HAL C init code (ExtractFromC).
package adapter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/roach88/bspgen/internal/afdb"
	"github.com/roach88/bspgen/internal/ir"
)

// iocLexer splits .ioc text into one token per line. Comment and junk lines
// (no "=") are elided so the grammar only sees entries and line ends.
var iocLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\r\n]*`},
	{Name: "EOL", Pattern: `\r?\n|\r`},
	{Name: "Entry", Pattern: `[^=\r\n]+=[^\r\n]*`},
	{Name: "Junk", Pattern: `[^\r\n]+`},
})

type iocDocument struct {
	Entries []string `parser:"( @Entry | EOL )*"`
}

var iocParser = participle.MustBuild[iocDocument](
	participle.Lexer(iocLexer),
	participle.Elide("Comment", "Junk"),
)

var (
	pinSignalRe = regexp.MustCompile(`^P([A-Z])(\d+)(?:_C)?\.Signal$`)
	pinLabelRe  = regexp.MustCompile(`^P([A-Z])(\d+)(?:_C)?\.GPIO_Label$`)
	kernelRe    = regexp.MustCompile(`^RCC\.([A-Za-z0-9]+)ClockSelection$`)
	signalRe    = regexp.MustCompile(`^([A-Z0-9]+?)(\d+)_([A-Z0-9]+)$`)
)

// ReservedPins are the SWD debug pins (SWDIO, SWCLK).
var ReservedPins = []string{"PA13", "PA14"}

// IOCFile is a parsed .ioc project: an ordered key/value map where a
// repeated key keeps its first position and its last value.
type IOCFile struct {
	kv ir.OrderedMap[string]
}

// IOCOptions controls IR construction from an .ioc project.
type IOCOptions struct {
	// AllowReserved lets the SWD debug pins through instead of failing.
	AllowReserved bool
}

// ParseIOC parses .ioc text. Keys and values are trimmed and a leading
// "Pin." key prefix (CubeMX board files) is dropped.
func ParseIOC(text string) (*IOCFile, error) {
	doc, err := iocParser.ParseString("", text)
	if err != nil {
		return nil, ir.NewDeserialize(".ioc", err)
	}
	f := &IOCFile{}
	for _, line := range doc.Entries {
		k, v, _ := strings.Cut(line, "=")
		k = strings.TrimPrefix(strings.TrimSpace(k), "Pin.")
		f.kv.Set(k, strings.TrimSpace(v))
	}
	return f, nil
}

// Get returns the value for key.
func (f *IOCFile) Get(key string) (string, bool) {
	return f.kv.Get(key)
}

// Len returns the number of distinct keys.
func (f *IOCFile) Len() int {
	return f.kv.Len()
}

// MCU returns Mcu.Name, or MISSING_FIELD when it is absent or empty.
func (f *IOCFile) MCU() (string, error) {
	mcu, ok := f.kv.Get("Mcu.Name")
	if !ok || mcu == "" {
		return "", ir.NewMissingField("Mcu.Name")
	}
	return mcu, nil
}

// IOCToIR parses text and converts it with r.
func IOCToIR(text string, r afdb.Resolver, opts IOCOptions) (*ir.Ir, error) {
	f, err := ParseIOC(text)
	if err != nil {
		return nil, err
	}
	return f.ToIR(r, opts)
}

// ToIR builds the IR. Pins keep file order and are never de-duplicated: a pin
// configured twice (e.g. PA1 and PA1_C) yields two entries.
func (f *IOCFile) ToIR(r afdb.Resolver, opts IOCOptions) (*ir.Ir, error) {
	mcu, err := f.MCU()
	if err != nil {
		return nil, err
	}
	pkg, _ := f.kv.Get("Mcu.Package")
	x := &ir.Ir{MCU: mcu, Package: pkg}

	labels := make(map[string]string)
	for _, e := range f.kv.Entries() {
		if m := pinLabelRe.FindStringSubmatch(e.Key); m != nil {
			labels["P"+m[1]+m[2]] = e.Value
		}
	}

	for _, e := range f.kv.Entries() {
		if m := pinSignalRe.FindStringSubmatch(e.Key); m != nil {
			pin := "P" + m[1] + m[2]
			af, _ := r.LookupAF(mcu, pin, e.Value)
			p := ir.Pin{Pin: pin, Func: e.Value, AF: af}
			if label, ok := labels[pin]; ok {
				p.Label = ir.StringPtr(label)
			}
			x.Pinctrl = append(x.Pinctrl, p)
			attachSignal(x, pin, e.Value)
			continue
		}
		if m := kernelRe.FindStringSubmatch(e.Key); m != nil {
			src := e.Value[strings.LastIndex(e.Value, "_")+1:]
			x.Clocks.Kernels.Set(strings.ToLower(m[1]), strings.ToLower(src))
		}
	}

	for n := 1; n <= 3; n++ {
		if pll, ok := f.pll(n); ok {
			x.Clocks.PLL.Set(fmt.Sprintf("pll%d", n), pll)
		}
	}

	if !opts.AllowReserved {
		for _, p := range x.Pinctrl {
			for _, reserved := range ReservedPins {
				if p.Pin == reserved {
					return nil, ir.NewReservedPin(p.Pin)
				}
			}
		}
	}

	f.inferCores(x)
	return x, nil
}

// pll reads RCC.PLL<n>{M,N,P,Q,R}; all five must be present and in range.
func (f *IOCFile) pll(n int) (ir.Pll, bool) {
	var vals [5]uint64
	for i, c := range "MNPQR" {
		s, ok := f.kv.Get(fmt.Sprintf("RCC.PLL%d%c", n, c))
		if !ok {
			return ir.Pll{}, false
		}
		bits := 8
		if c == 'N' {
			bits = 16
		}
		v, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return ir.Pll{}, false
		}
		vals[i] = v
	}
	return ir.Pll{
		M: uint8(vals[0]),
		N: uint16(vals[1]),
		P: uint8(vals[2]),
		Q: uint8(vals[3]),
		R: uint8(vals[4]),
	}, true
}

// SplitSignal splits "USART1_TX" into instance "usart1", class "serial" and
// role "tx". Only USART/UART, SPI and I2C signals are recognised.
func SplitSignal(sig string) (instance, class, role string, ok bool) {
	m := signalRe.FindStringSubmatch(sig)
	if m == nil {
		return "", "", "", false
	}
	switch m[1] {
	case "USART", "UART":
		class = "serial"
	case "SPI":
		class = "spi"
	case "I2C":
		class = "i2c"
	default:
		return "", "", "", false
	}
	return strings.ToLower(m[1]) + m[2], class, strings.ToLower(m[3]), true
}

func attachSignal(x *ir.Ir, pin, sig string) {
	name, class, role, ok := SplitSignal(sig)
	if !ok {
		return
	}
	p, exists := x.Peripherals.Get(name)
	if !exists {
		p = ir.Peripheral{Class: class}
	}
	p.Signals.Set(role, pin)
	x.Peripherals.Set(name, p)
}

// inferCores applies ownership hints: <IP>.AssignedTo|Core|CPU|Owner per
// peripheral, then RCC.InitBy, then a lone enabled ProjectManager core project.
func (f *IOCFile) inferCores(x *ir.Ir) {
	for _, e := range x.Peripherals.Entries() {
		ip := strings.ToUpper(e.Key)
		for _, suffix := range []string{"AssignedTo", "Core", "CPU", "Owner"} {
			v, ok := f.kv.Get(ip + "." + suffix)
			if !ok {
				continue
			}
			if core, ok := coreHint(v); ok {
				p := e.Value
				p.Core = ir.CorePtr(core)
				x.Peripherals.Set(e.Key, p)
				break
			}
		}
	}

	if x.Clocks.InitBy == nil {
		if v, ok := f.kv.Get("RCC.InitBy"); ok {
			if core, ok := ir.ParseCore(v); ok {
				x.Clocks.InitBy = ir.CorePtr(core)
			}
		}
	}
	if x.Clocks.InitBy == nil {
		cm7 := f.flag("ProjectManager.CM7Project")
		cm4 := f.flag("ProjectManager.CM4Project")
		switch {
		case cm7 && !cm4:
			x.Clocks.InitBy = ir.CorePtr(ir.CoreCM7)
		case cm4 && !cm7:
			x.Clocks.InitBy = ir.CorePtr(ir.CoreCM4)
		}
	}
}

// coreHint accepts an exact core token or, failing that, a value containing one.
func coreHint(v string) (ir.Core, bool) {
	if core, ok := ir.ParseCore(v); ok {
		return core, true
	}
	lower := strings.ToLower(v)
	for _, tok := range []string{"cm4", "cpu2", "core2"} {
		if strings.Contains(lower, tok) {
			return ir.CoreCM4, true
		}
	}
	for _, tok := range []string{"cm7", "cpu1", "core1"} {
		if strings.Contains(lower, tok) {
			return ir.CoreCM7, true
		}
	}
	return "", false
}

func (f *IOCFile) flag(key string) bool {
	v, _ := f.kv.Get(key)
	return v == "true" || v == "1"
}
