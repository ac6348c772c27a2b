package generate

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/bspgen/internal/adapter"
	"github.com/roach88/bspgen/internal/afdb"
	"github.com/roach88/bspgen/internal/ir"
)

// Overlay is a board overlay document as found under boards/ in a vendor
// archive.
type Overlay struct {
	Board    string                              `json:"board"`
	Chip     string                              `json:"chip"`
	Pins     ir.OrderedMap[ir.OrderedMap[uint8]] `json:"pins"`
	Template string                              `json:"template,omitempty"`
}

// ImportRequest converts one .ioc project into an overlay.
type ImportRequest struct {
	IOC      string
	Board    string
	Out      string
	Template string
	AF       AFSource

	AllowReserved bool
}

// ImportBoard writes an overlay for req.IOC to req.Out. The chip is the
// project's Mcu.Name. AF numbers come from req.AF; when the source does not
// know the part every AF is 0.
func ImportBoard(ctx context.Context, req ImportRequest) (*Overlay, error) {
	text, err := os.ReadFile(req.IOC)
	if err != nil {
		return nil, err
	}
	f, err := adapter.ParseIOC(string(text))
	if err != nil {
		return nil, err
	}
	mcu, err := f.MCU()
	if err != nil {
		return nil, err
	}

	r, err := req.AF.Resolver(ctx, mcu)
	if ir.IsCode(err, ir.ErrCodeUnknownMCU) {
		slog.Warn("AF source does not know MCU, AF numbers default to 0", "mcu", mcu)
		r = afdb.ResolverFunc(func(_, _, _ string) (uint8, bool) { return 0, false })
	} else if err != nil {
		return nil, err
	}

	x, err := f.ToIR(r, adapter.IOCOptions{AllowReserved: req.AllowReserved})
	if err != nil {
		return nil, err
	}

	ov := &Overlay{Board: req.Board, Chip: mcu, Template: req.Template}
	for _, p := range x.Pinctrl {
		funcs, _ := ov.Pins.Get(p.Pin)
		funcs.Set(p.Func, p.AF)
		ov.Pins.Set(p.Pin, funcs)
	}

	data, err := json.MarshalIndent(ov, "", "  ")
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(req.Out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(req.Out, append(data, '\n'), 0o644); err != nil {
		return nil, err
	}
	slog.Info("imported board", "board", req.Board, "chip", mcu, "pins", ov.Pins.Len(), "out", req.Out)
	return ov, nil
}
