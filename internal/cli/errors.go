package cli

import (
	"errors"
	"io/fs"

	"github.com/roach88/bspgen/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNoFiles     = "E003" // No input files
	ErrCodeParse       = "E004" // Malformed input document
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeInvalidIR   = "E006" // IR breaks a structural invariant
	ErrCodeWriteFailed = "E007" // File write error

	// Board description errors
	ErrCodeMissingField   = "E101" // Required key absent (e.g. Mcu.Name)
	ErrCodeReservedPin    = "E102" // SWD pin configured without --allow-reserved
	ErrCodeUnknownMCU     = "E103" // AF database has no entry for the part
	ErrCodeDuplicateLabel = "E104" // Label collision in strict mode
	ErrCodeUnresolvedAF   = "E105" // No AF for a pin and signal

	ErrCodeTestFailed = "E201" // One or more conformance scenarios failed
)

var irCodes = map[ir.ErrorCode]string{
	ir.ErrCodeMissingField:   ErrCodeMissingField,
	ir.ErrCodeReservedPin:    ErrCodeReservedPin,
	ir.ErrCodeUnknownMCU:     ErrCodeUnknownMCU,
	ir.ErrCodeDeserialize:    ErrCodeParse,
	ir.ErrCodeDuplicateLabel: ErrCodeDuplicateLabel,
	ir.ErrCodeNoInputFiles:   ErrCodeNoFiles,
	ir.ErrCodeInvalidIR:      ErrCodeInvalidIR,
}

// ErrorCodeFor maps an error to its CLI error code.
func ErrorCodeFor(err error) string {
	if code, ok := irCodes[ir.CodeOf(err)]; ok {
		return code
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCodeNotFound
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && pathErr.Op != "open" && pathErr.Op != "stat" {
		return ErrCodeWriteFailed
	}
	return ErrCodeGeneric
}

// exitCodeFor treats a missing path as a command error and everything else
// as a failure of the board description.
func exitCodeFor(code string) int {
	if code == ErrCodeNotFound {
		return ExitCommandError
	}
	return ExitFailure
}

// errorDetails returns the key and pin an ir.Error names, or nil.
func errorDetails(err error) map[string]string {
	var e *ir.Error
	if !errors.As(err, &e) {
		return nil
	}
	d := map[string]string{}
	if e.Key != "" {
		d["key"] = e.Key
	}
	if e.Pin != "" {
		d["pin"] = e.Pin
	}
	if len(d) == 0 {
		return nil
	}
	return d
}
