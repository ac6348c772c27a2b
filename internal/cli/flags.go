package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/generate"
)

// afFlags selects the alternate-function sources shared by generate,
// validate, import and afdb lookup.
type afFlags struct {
	JSON     string
	VendorDB string
	Index    string
	Vendor   string
}

func (f *afFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.JSON, "af-json", "", "AF map JSON file (MCU -> pin -> signal -> AF)")
	cmd.Flags().StringVar(&f.VendorDB, "vendor-db", "", "vendor archive (tar.zst or flat)")
	cmd.Flags().StringVar(&f.Index, "af-index", "", "SQLite AF index built by 'bspgen afdb import'")
	cmd.Flags().StringVar(&f.Vendor, "vendor", "", "vendor name (archive cache key, index filter, YAML dialect)")
}

func (f *afFlags) source() generate.AFSource {
	return generate.AFSource{
		JSON:     f.JSON,
		VendorDB: f.VendorDB,
		Index:    f.Index,
		Vendor:   f.Vendor,
	}
}
