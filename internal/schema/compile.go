package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/bspgen/internal/ir"
)

// CompileBoard compiles CUE board source into an IR. The source is unified
// with #Ir first; field order in the source becomes map order in the IR.
//
// Example source:
//
//	mcu:     "STM32H747XIHx"
//	package: "TFBGA240"
//	pinctrl: [{pin: "PA9", func: "USART1_TX", af: 7}]
//	peripherals: usart1: {class: "serial", signals: tx: "PA9"}
func CompileBoard(name string, src []byte) (*ir.Ir, error) {
	s, err := Default()
	if err != nil {
		return nil, err
	}
	return s.CompileBoard(name, src)
}

// CompileBoard compiles CUE board source into an IR.
func (s *Validator) CompileBoard(name string, src []byte) (*ir.Ir, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.CompileBytes(src, cue.Filename(name))
	if err := s.check(name, v); err != nil {
		return nil, err
	}
	return compileIR(v)
}

// compileIR walks a validated board value.
func compileIR(v cue.Value) (*ir.Ir, error) {
	x := &ir.Ir{}
	var err error
	if x.MCU, err = stringField(v, "mcu", true); err != nil {
		return nil, err
	}
	if x.Package, err = stringField(v, "package", false); err != nil {
		return nil, err
	}
	if err := compileClocks(v.LookupPath(cue.ParsePath("clocks")), &x.Clocks); err != nil {
		return nil, err
	}

	pinctrl := v.LookupPath(cue.ParsePath("pinctrl"))
	if present(pinctrl) {
		iter, err := pinctrl.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			pin, err := compilePin(iter.Value())
			if err != nil {
				return nil, err
			}
			x.Pinctrl = append(x.Pinctrl, pin)
		}
	}

	periphs := v.LookupPath(cue.ParsePath("peripherals"))
	if present(periphs) {
		iter, err := periphs.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			p, err := compilePeripheral(iter.Value())
			if err != nil {
				return nil, err
			}
			x.Peripherals.Set(iter.Label(), p)
		}
	}
	return x, nil
}

func compileClocks(v cue.Value, c *ir.Clocks) error {
	if !present(v) {
		return nil
	}
	if pll := v.LookupPath(cue.ParsePath("pll")); present(pll) {
		iter, err := pll.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			var p ir.Pll
			if err := iter.Value().Decode(&p); err != nil {
				return formatCUEError(err)
			}
			c.PLL.Set(iter.Label(), p)
		}
	}
	if kernels := v.LookupPath(cue.ParsePath("kernels")); present(kernels) {
		iter, err := kernels.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			src, err := iter.Value().String()
			if err != nil {
				return formatCUEError(err)
			}
			c.Kernels.Set(iter.Label(), src)
		}
	}
	core, err := coreField(v, "init_by")
	if err != nil {
		return err
	}
	c.InitBy = core
	return nil
}

func compilePin(v cue.Value) (ir.Pin, error) {
	var p ir.Pin
	var err error
	if p.Pin, err = stringField(v, "pin", true); err != nil {
		return p, err
	}
	if p.Func, err = stringField(v, "func", true); err != nil {
		return p, err
	}
	if label := v.LookupPath(cue.ParsePath("label")); present(label) {
		s, err := label.String()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.Label = ir.StringPtr(s)
	}
	af, err := v.LookupPath(cue.ParsePath("af")).Uint64()
	if err != nil {
		return p, formatCUEError(err)
	}
	p.AF = uint8(af)
	return p, nil
}

func compilePeripheral(v cue.Value) (ir.Peripheral, error) {
	var p ir.Peripheral
	var err error
	if p.Class, err = stringField(v, "class", true); err != nil {
		return p, err
	}
	if signals := v.LookupPath(cue.ParsePath("signals")); present(signals) {
		iter, err := signals.Fields()
		if err != nil {
			return p, formatCUEError(err)
		}
		for iter.Next() {
			pin, err := iter.Value().String()
			if err != nil {
				return p, formatCUEError(err)
			}
			p.Signals.Set(iter.Label(), pin)
		}
	}
	if p.Core, err = coreField(v, "core"); err != nil {
		return p, err
	}
	return p, nil
}

// present reports whether v exists and is not null.
func present(v cue.Value) bool {
	return v.Exists() && !v.IsNull()
}

func stringField(v cue.Value, field string, required bool) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !present(f) {
		if required {
			return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func coreField(v cue.Value, field string) (*ir.Core, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !present(f) {
		return nil, nil
	}
	s, err := f.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	core, ok := ir.ParseCore(s)
	if !ok {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown core %q", s), Pos: f.Pos()}
	}
	return ir.CorePtr(core), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
