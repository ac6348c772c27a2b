package ir

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Core identifies a CPU core on dual-core microcontrollers (e.g. STM32H747 CM7/CM4).
type Core string

const (
	CoreCM7 Core = "cm7"
	CoreCM4 Core = "cm4"
)

// ValidCores lists every Core value in a stable order.
var ValidCores = []Core{CoreCM7, CoreCM4}

// Valid reports whether c is one of the known cores.
func (c Core) Valid() bool {
	return c == CoreCM7 || c == CoreCM4
}

// String returns the snake_case tag used in YAML, JSON and templates.
func (c Core) String() string {
	return string(c)
}

// ParseCore maps a core token to a Core. Besides the canonical tags it
// accepts the CubeMX aliases cpu1/core1/m7 and cpu2/core2/m4, in any case.
func ParseCore(s string) (Core, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cm7", "cpu1", "core1", "m7":
		return CoreCM7, true
	case "cm4", "cpu2", "core2", "m4":
		return CoreCM4, true
	}
	return "", false
}

// UnmarshalYAML rejects core tags outside the closed set.
func (c *Core) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	core := Core(strings.ToLower(s))
	if !core.Valid() {
		return fmt.Errorf("line %d: unknown core %q (want cm7 or cm4)", value.Line, s)
	}
	*c = core
	return nil
}

// UnmarshalJSON rejects core tags outside the closed set.
func (c *Core) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	core := Core(strings.ToLower(s))
	if !core.Valid() {
		return fmt.Errorf("unknown core %q (want cm7 or cm4)", s)
	}
	*c = core
	return nil
}

// Ir is the top-level board description shared by every adapter and renderer.
type Ir struct {
	MCU         string                 `json:"mcu" yaml:"mcu"`         // e.g. "STM32H747XIHx"
	Package     string                 `json:"package" yaml:"package"` // e.g. "LQFP176"
	Clocks      Clocks                 `json:"clocks" yaml:"clocks"`
	Pinctrl     []Pin                  `json:"pinctrl" yaml:"pinctrl"`
	Peripherals OrderedMap[Peripheral] `json:"peripherals" yaml:"peripherals"`
}

// Clocks holds PLL parameters, kernel clock muxes and clock-init ownership.
type Clocks struct {
	PLL     OrderedMap[Pll]    `json:"pll" yaml:"pll,omitempty"`         // pll1, pll2, ...
	Kernels OrderedMap[string] `json:"kernels" yaml:"kernels,omitempty"` // usart1 -> pclk2

	// InitBy names the core responsible for system clock/PLL setup.
	// Nil means initialization is unified or handled elsewhere.
	InitBy *Core `json:"init_by,omitempty" yaml:"init_by,omitempty"`
}

// Pll is one PLL parameter block.
type Pll struct {
	M uint8  `json:"m" yaml:"m"` // pre-divider
	N uint16 `json:"n" yaml:"n"` // multiplier
	P uint8  `json:"p" yaml:"p"`
	Q uint8  `json:"q" yaml:"q"`
	R uint8  `json:"r" yaml:"r"`
}

// Pin is one configured pin.
type Pin struct {
	Pin   string  `json:"pin" yaml:"pin"`                         // "PA9"
	Func  string  `json:"func" yaml:"func"`                       // "USART1_TX", "GPIO_Output"
	Label *string `json:"label,omitempty" yaml:"label,omitempty"` // user label (GPIO_Label in .ioc)
	AF    uint8   `json:"af" yaml:"af"`                           // 0 for plain GPIO
}

// LabelOr returns the pin label, or def when the pin has none.
func (p Pin) LabelOr(def string) string {
	if p.Label == nil {
		return def
	}
	return *p.Label
}

// Peripheral maps signal roles (tx, rx, sck, ...) to pin names.
type Peripheral struct {
	Class   string             `json:"class" yaml:"class"` // serial, spi, i2c, timer, misc
	Signals OrderedMap[string] `json:"signals" yaml:"signals,omitempty"`
	Core    *Core              `json:"core,omitempty" yaml:"core,omitempty"`
}

// References reports whether any signal of p is routed to pin.
func (p Peripheral) References(pin string) bool {
	for _, e := range p.Signals.Entries() {
		if e.Value == pin {
			return true
		}
	}
	return false
}

// CorePtr returns a pointer to a copy of c, for the optional Core fields.
func CorePtr(c Core) *Core {
	return &c
}

// StringPtr returns a pointer to a copy of s, for Pin.Label.
func StringPtr(s string) *string {
	return &s
}
