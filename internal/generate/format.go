package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/bspgen/internal/adapter"
)

// Format is an input dialect.
type Format string

const (
	FormatIOC  Format = "ioc"
	FormatYAML Format = "yaml"
	FormatC    Format = "c"
	FormatCUE  Format = "cue"
	FormatJSON Format = "json" // an IR dump, as written by "bspgen validate --format json"
)

// DetectFormat picks the dialect of input from its extension. A directory is
// C source. YAML input needs a registered vendor. Stat errors are returned
// unwrapped.
func DetectFormat(input, vendor string) (Format, error) {
	fi, err := os.Stat(input)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return FormatC, nil
	}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".ioc":
		return FormatIOC, nil
	case ".yaml", ".yml":
		if !adapter.IsYAMLVendor(vendor) {
			return "", fmt.Errorf("YAML input %s needs a vendor, one of %s", input, strings.Join(adapter.YAMLVendors, ", "))
		}
		return FormatYAML, nil
	case ".c", ".h":
		return FormatC, nil
	case ".cue":
		return FormatCUE, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("cannot tell the format of %s", input)
}
