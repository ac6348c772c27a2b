package harness

import (
	"github.com/roach88/bspgen/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	MCU         string `json:"mcu,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`

	// Files lists the generated files relative to the output directory,
	// slash-separated, board module excluded.
	Files []string `json:"files"`

	// Outputs holds the content of every generated file, board module
	// included, keyed like Files.
	Outputs map[string]string `json:"-"`

	// ErrorCode is the code generation failed with, if it did.
	ErrorCode ir.ErrorCode `json:"error_code,omitempty"`

	// IR is the generated board description.
	IR *ir.Ir `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Files:   []string{},
		Outputs: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
