package generate

import (
	"context"
	"log/slog"

	"github.com/roach88/bspgen/internal/afdb"
	"github.com/roach88/bspgen/internal/store"
)

// DefaultVendor names a vendor database given without a vendor.
const DefaultVendor = "st"

// AFSource says where alternate-function numbers come from. The zero value
// resolves through the bring-up fallback table only.
type AFSource struct {
	JSON     string // {MCU: {PIN: {SIGNAL: AF}}} document
	VendorDB string // vendor archive (flat or tar, optionally zstd)
	Index    string // SQLite AF index built by "bspgen afdb import"
	Vendor   string // vendor of VendorDB and Index; Index matches any vendor when empty
}

// IsZero reports whether no source is configured.
func (s AFSource) IsZero() bool {
	return s.JSON == "" && s.VendorDB == "" && s.Index == ""
}

// Resolver builds the lookup chain for mcu: the JSON document, then the
// index, then the vendor archive, then the fallback table. An index or
// archive without the part fails with UNKNOWN_MCU.
func (s AFSource) Resolver(ctx context.Context, mcu string) (afdb.Resolver, error) {
	var chain afdb.Chain

	if s.JSON != "" {
		r, err := afdb.LoadJSONResolver(s.JSON)
		if err != nil {
			return nil, err
		}
		if !r.HasMCU(mcu) {
			slog.Warn("AF document has no entries for MCU", "path", s.JSON, "mcu", mcu)
		}
		chain = append(chain, r)
	}

	if s.Index != "" {
		st, err := store.Open(s.Index)
		if err != nil {
			return nil, err
		}
		r, err := st.Resolver(ctx, s.Vendor, mcu)
		st.Close()
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}

	if s.VendorDB != "" {
		a, err := s.archive()
		if err != nil {
			return nil, err
		}
		r, err := afdb.NewMCUResolver(a, mcu)
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}

	chain = append(chain, afdb.FallbackResolver{})
	slog.Debug("AF resolver chain", "mcu", mcu, "sources", len(chain))
	return chain, nil
}

// archive returns the decoded vendor archive, shared across the process.
func (s AFSource) archive() (*afdb.Archive, error) {
	v, err := afdb.OpenArchiveVendor(s.vendor(), s.VendorDB)
	if err != nil {
		return nil, err
	}
	return afdb.Shared(v)
}

func (s AFSource) vendor() string {
	if s.Vendor == "" {
		return DefaultVendor
	}
	return s.Vendor
}
