// Package generate runs the whole pipeline for one board: read the input,
// resolve alternate functions, apply ownership heuristics, validate and
// render every requested template.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/bspgen/internal/adapter"
	"github.com/roach88/bspgen/internal/heuristics"
	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/render"
	"github.com/roach88/bspgen/internal/schema"
	"github.com/roach88/bspgen/internal/store"
)

// Request describes one generation.
type Request struct {
	Input  string
	OutDir string

	// Templates are built-in names (hal, pac, simple, pinreport) or template
	// file paths. Empty means hal.
	Templates []string

	Layout                render.Layout
	GroupedWrites         bool
	WithDeinit            bool
	AllowReserved         bool
	UseLabelNames         bool
	EmitLabelConsts       bool
	LabelPrefix           string
	FailOnDuplicateLabels bool

	InitBy *ir.Core
	Owners map[string]ir.Core
	Core   *ir.Core

	// BoardMod writes OutDir/mod.rs exposing the generated forms.
	BoardMod bool

	AF AFSource

	// Vendor selects the YAML adapter.
	Vendor string

	// MCU and Package label IR extracted from C source.
	MCU     string
	Package string

	// History is a SQLite database the run is recorded in.
	History string
}

// Result reports what a generation produced.
type Result struct {
	Input       string   `json:"input"`
	MCU         string   `json:"mcu"`
	Fingerprint string   `json:"fingerprint"`
	Files       []string `json:"files"`
	Outputs     []Output `json:"outputs"`
	BoardModule string   `json:"board_module,omitempty"`
	RunIDs      []string `json:"run_ids,omitempty"`

	IR *ir.Ir `json:"-"`
}

// Output is what one template wrote.
type Output struct {
	Template string   `json:"template"`
	Files    []string `json:"files"`
}

func (r *Request) templates() []string {
	if len(r.Templates) == 0 {
		return []string{string(render.KindHAL)}
	}
	return r.Templates
}

func (r *Request) renderOptions() render.Options {
	return render.Options{
		Layout:                r.Layout,
		GroupedWrites:         r.GroupedWrites,
		WithDeinit:            r.WithDeinit,
		UseLabelNames:         r.UseLabelNames,
		EmitLabelConsts:       r.EmitLabelConsts,
		LabelPrefix:           r.LabelPrefix,
		FailOnDuplicateLabels: r.FailOnDuplicateLabels,
		Core:                  r.Core,
	}
}

// Run executes req. Everything that can fail before writing (parsing,
// resolution, validation, template loading) does, so a failed request
// leaves no output behind. File system errors are returned unwrapped.
func Run(ctx context.Context, req Request) (*Result, error) {
	logger := slog.With("input", req.Input)

	x, err := Load(ctx, req)
	if err != nil {
		return nil, err
	}
	x = heuristics.DefaultInitBy(x, req.InitBy)
	x = heuristics.ApplyOwners(x, req.Owners)
	if err := x.Validate(); err != nil {
		return nil, err
	}
	if err := schema.Validate(x); err != nil {
		return nil, err
	}

	renderers := make([]*render.Renderer, 0, len(req.templates()))
	for _, name := range req.templates() {
		r, err := render.Load(render.ParseTemplate(name))
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, r)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fp, err := ir.Fingerprint(x)
	if err != nil {
		return nil, err
	}
	res := &Result{Input: req.Input, MCU: x.MCU, Fingerprint: fp, IR: x}

	var forms render.Forms
	for _, r := range renderers {
		files, err := r.Generate(x, req.OutDir, req.renderOptions())
		if err != nil {
			return nil, err
		}
		res.Outputs = append(res.Outputs, Output{Template: r.Template().String(), Files: files})
		res.Files = append(res.Files, files...)
		if t := r.Template(); !t.IsCustom() {
			forms.Add(t.Kind)
		}
		logger.Debug("rendered template", "template", r.Template().String(), "files", len(files))
	}

	if req.BoardMod {
		path, err := render.EmitBoardModule(req.OutDir, forms)
		if err != nil {
			return nil, err
		}
		res.BoardModule = path
	}

	if req.History != "" {
		if err := Record(ctx, req.History, req, res); err != nil {
			return nil, err
		}
	}

	logger.Info("generated board", "mcu", x.MCU, "files", len(res.Files), "fingerprint", fp)
	return res, nil
}

// Load reads req.Input through the adapter for its format. The AF source is
// consulted for .ioc input only; the other dialects carry AF numbers.
func Load(ctx context.Context, req Request) (*ir.Ir, error) {
	format, err := DetectFormat(req.Input, req.Vendor)
	if err != nil {
		return nil, err
	}
	slog.Debug("loading input", "input", req.Input, "format", format)

	switch format {
	case FormatIOC:
		text, err := os.ReadFile(req.Input)
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
		if err != nil {
			return nil, err
		}
		return f.ToIR(r, adapter.IOCOptions{AllowReserved: req.AllowReserved})

	case FormatYAML:
		text, err := os.ReadFile(req.Input)
		if err != nil {
			return nil, err
		}
		return adapter.YAMLToIR(req.Vendor, text)

	case FormatC:
		if req.MCU == "" {
			return nil, ir.NewMissingField("mcu")
		}
		files, err := adapter.DiscoverCSources(req.Input)
		if err != nil {
			return nil, err
		}
		return adapter.ExtractFromC(files, adapter.ExtractOptions{MCU: req.MCU, Package: req.Package})

	case FormatCUE:
		src, err := os.ReadFile(req.Input)
		if err != nil {
			return nil, err
		}
		return schema.CompileBoard(req.Input, src)

	case FormatJSON:
		data, err := os.ReadFile(req.Input)
		if err != nil {
			return nil, err
		}
		var x ir.Ir
		if err := json.Unmarshal(data, &x); err != nil {
			return nil, ir.NewDeserialize(req.Input, err)
		}
		return &x, nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// Record appends one history entry per template output of res to the
// database at path and stores the run ids in res.
func Record(ctx context.Context, path string, req Request, res *Result) error {
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	defer st.Close()

	for _, out := range res.Outputs {
		run, err := st.RecordRun(ctx, store.Run{
			Input:       req.Input,
			MCU:         res.MCU,
			Fingerprint: res.Fingerprint,
			Template:    out.Template,
			Layout:      req.Layout.String(),
			Files:       out.Files,
		})
		if err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		res.RunIDs = append(res.RunIDs, run.ID)
	}
	return nil
}
