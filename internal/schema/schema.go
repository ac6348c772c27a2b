// Package schema validates board descriptions against the CUE definition of
// the IR and compiles CUE board files into IR values.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/bspgen/internal/ir"
)

//go:embed ir.cue
var irSchema string

// Validator holds the compiled #Ir definition. A cue.Context is not safe for
// concurrent use, so every method takes the validator's lock.
type Validator struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(irSchema, cue.Filename("ir.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", formatCUEError(err))
	}
	def := v.LookupPath(cue.ParsePath("#Ir"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Ir: %w", formatCUEError(err))
	}
	return &Validator{ctx: ctx, def: def}, nil
}

var defaultValidator = sync.OnceValues(NewValidator)

// Default returns the process-wide validator.
func Default() (*Validator, error) {
	return defaultValidator()
}

// Validate checks an IR against #Ir. Failures are DESERIALIZE errors.
func Validate(x *ir.Ir) error {
	v, err := Default()
	if err != nil {
		return err
	}
	return v.Validate(x)
}

// ValidateYAML checks a YAML board document against #Ir.
func ValidateYAML(name string, src []byte) error {
	v, err := Default()
	if err != nil {
		return err
	}
	return v.ValidateYAML(name, src)
}

// Validate checks an IR against #Ir.
func (s *Validator) Validate(x *ir.Ir) error {
	data, err := json.Marshal(x)
	if err != nil {
		return fmt.Errorf("encode IR: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check("ir.json", s.ctx.CompileBytes(data, cue.Filename("ir.json")))
}

// ValidateYAML checks a YAML board document against #Ir.
func (s *Validator) ValidateYAML(name string, src []byte) error {
	f, err := cueyaml.Extract(name, src)
	if err != nil {
		return ir.NewDeserialize(name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(name, s.ctx.BuildFile(f))
}

// check unifies v with #Ir; the caller holds s.mu.
func (s *Validator) check(name string, v cue.Value) error {
	if err := v.Err(); err != nil {
		return ir.NewDeserialize(name, formatCUEError(err))
	}
	if err := s.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return ir.NewDeserialize(name, formatCUEError(err))
	}
	return nil
}
