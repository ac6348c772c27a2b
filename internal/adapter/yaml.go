package adapter

import (
	"bytes"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/schema"
)

// YAMLVendors lists the vendors whose board files are IR-shaped YAML.
var YAMLVendors = []string{
	"silabs",
	"nxp",
	"renesas",
	"microchip",
	"espressif",
	"rp2040",
	"ti",
	"nrf",
}

// IsYAMLVendor reports whether vendor has a YAML adapter.
func IsYAMLVendor(vendor string) bool {
	return slices.Contains(YAMLVendors, vendor)
}

// YAMLToIR decodes a vendor YAML board file. The document must already match
// the IR shape: unknown fields are rejected and the result is checked against
// the IR schema. No inference is applied.
func YAMLToIR(vendor string, text []byte) (*ir.Ir, error) {
	if !IsYAMLVendor(vendor) {
		return nil, fmt.Errorf("no YAML adapter for vendor %q", vendor)
	}
	name := vendor + ".yaml"

	dec := yaml.NewDecoder(bytes.NewReader(text))
	dec.KnownFields(true)
	var x ir.Ir
	if err := dec.Decode(&x); err != nil {
		return nil, ir.NewDeserialize(name, err)
	}
	if err := schema.ValidateYAML(name, text); err != nil {
		return nil, err
	}
	return &x, nil
}
