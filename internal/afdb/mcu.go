package afdb

import "strings"

// MCUResolver resolves AFs for one MCU against its decoded pin table.
//
// Lookup order:
//  1. the function with any ST-style "S_" prefix stripped, if it maps to a non-zero AF
//  2. the function exactly as given
//  3. the bring-up fallback table
//
// Anything else is unresolved.
type MCUResolver struct {
	mcu   string
	table *PinTable
}

// NewMCUResolver builds a resolver for mcu from a decoded archive. It fails
// with UNKNOWN_MCU when the archive has no pin table for the part.
func NewMCUResolver(a *Archive, mcu string) (*MCUResolver, error) {
	t, err := a.PinTable(mcu)
	if err != nil {
		return nil, err
	}
	return &MCUResolver{mcu: mcu, table: t}, nil
}

// NewTableResolver binds an already loaded pin table to mcu.
func NewTableResolver(mcu string, t *PinTable) *MCUResolver {
	return &MCUResolver{mcu: mcu, table: t}
}

// MCU returns the part this resolver was built for.
func (r *MCUResolver) MCU() string {
	return r.mcu
}

// LookupAF implements Resolver. The mcu argument is ignored; the resolver is
// already bound to one part.
func (r *MCUResolver) LookupAF(_, pin, fn string) (uint8, bool) {
	if normalized := strings.TrimPrefix(fn, "S_"); normalized != fn {
		if af, ok := r.table.Lookup(pin, normalized); ok && af != 0 {
			return af, true
		}
	}
	if af, ok := r.table.Lookup(pin, fn); ok {
		return af, true
	}
	return FallbackResolver{}.LookupAF(r.mcu, pin, fn)
}
