package afdb

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/roach88/bspgen/internal/ir"
)

// Resolver answers "which alternate function does pin serve fn through on
// mcu". The bool is false when the lookup is unresolved; callers then
// default the AF to 0.
type Resolver interface {
	LookupAF(mcu, pin, fn string) (uint8, bool)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(mcu, pin, fn string) (uint8, bool)

// LookupAF calls f(mcu, pin, fn).
func (f ResolverFunc) LookupAF(mcu, pin, fn string) (uint8, bool) {
	return f(mcu, pin, fn)
}

// Chain consults each resolver in turn and returns the first resolved AF.
type Chain []Resolver

// LookupAF implements Resolver.
func (c Chain) LookupAF(mcu, pin, fn string) (uint8, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if af, ok := r.LookupAF(mcu, pin, fn); ok {
			return af, true
		}
	}
	return 0, false
}

type pinSignal struct {
	pin, signal string
}

// bringUpAF lists board bring-up exceptions known to be missing from older
// vendor databases (STM32H747I-DISCO console UART and touch I2C).
var bringUpAF = map[pinSignal]uint8{
	{"PA9", "USART1_TX"}:  7,
	{"PA10", "USART1_RX"}: 7,
	{"PD12", "I2C4_SCL"}:  4,
	{"PD13", "I2C4_SDA"}:  4,
}

// FallbackResolver serves only the fixed bring-up table. It ignores mcu.
type FallbackResolver struct{}

// LookupAF implements Resolver.
func (FallbackResolver) LookupAF(_, pin, fn string) (uint8, bool) {
	af, ok := bringUpAF[pinSignal{pin, strings.TrimPrefix(fn, "S_")}]
	return af, ok
}

// JSONResolver is backed by a {MCU: {PIN: {SIGNAL: AF}}} document.
type JSONResolver struct {
	table map[string]map[string]map[string]uint8
}

// ParseJSONResolver decodes a JSON AF document.
func ParseJSONResolver(data []byte) (*JSONResolver, error) {
	var table map[string]map[string]map[string]uint8
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, ir.NewDeserialize("AF JSON", err)
	}
	return &JSONResolver{table: table}, nil
}

// LoadJSONResolver reads and decodes a JSON AF document from path.
// Read errors are returned unwrapped.
func LoadJSONResolver(path string) (*JSONResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseJSONResolver(data)
}

// LookupAF implements Resolver with an exact (mcu, pin, fn) match.
func (r *JSONResolver) LookupAF(mcu, pin, fn string) (uint8, bool) {
	af, ok := r.table[mcu][pin][fn]
	return af, ok
}

// HasMCU reports whether the document has any entry for mcu.
func (r *JSONResolver) HasMCU(mcu string) bool {
	_, ok := r.table[mcu]
	return ok
}
