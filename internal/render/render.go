// Package render turns an IR into source files through text/template.
//
// Built-in templates (hal, pac, simple, pinreport) are embedded; a custom
// template file may be used instead. Output is written either as one file
// (OneFile) or as one file per peripheral plus a mod.rs aggregator
// (PerPeripheral). EmitBoardModule writes the top-level board mod.rs.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/roach88/bspgen/internal/heuristics"
	"github.com/roach88/bspgen/internal/ir"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"hex32": func(v uint32) string { return fmt.Sprintf("0x%08X", v) },
	"join":  strings.Join,
}

var builtin = template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl"))

// Kind names a built-in template.
type Kind string

const (
	KindHAL       Kind = "hal"
	KindPAC       Kind = "pac"
	KindSimple    Kind = "simple"
	KindPinReport Kind = "pinreport"
)

// Kinds lists the built-in templates.
var Kinds = []Kind{KindHAL, KindPAC, KindSimple, KindPinReport}

// OutputName is the base name of the file (OneFile) or directory
// (PerPeripheral) a built-in template writes. The simple template is the
// board summary.
func (k Kind) OutputName() string {
	if k == KindSimple {
		return "summary"
	}
	return string(k)
}

// Template selects a built-in Kind or a custom template Path.
type Template struct {
	Kind Kind
	Path string
}

// ParseTemplate maps a built-in name to its Kind; anything else is a path.
func ParseTemplate(s string) Template {
	for _, k := range Kinds {
		if strings.EqualFold(s, string(k)) {
			return Template{Kind: k}
		}
	}
	return Template{Path: s}
}

// IsCustom reports whether t is a template file.
func (t Template) IsCustom() bool {
	return t.Kind == ""
}

func (t Template) String() string {
	if t.IsCustom() {
		return t.Path
	}
	return string(t.Kind)
}

// Layout selects how output is split into files.
type Layout int

const (
	OneFile Layout = iota
	PerPeripheral
)

func (l Layout) String() string {
	if l == PerPeripheral {
		return "per-peripheral"
	}
	return "one-file"
}

// ParseLayout accepts "one-file" and "per-peripheral".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "one-file", "onefile":
		return OneFile, nil
	case "per-peripheral", "perperipheral":
		return PerPeripheral, nil
	}
	return OneFile, fmt.Errorf("unknown layout %q", s)
}

// Options controls rendering.
type Options struct {
	Layout                Layout
	GroupedWrites         bool
	WithDeinit            bool
	UseLabelNames         bool
	EmitLabelConsts       bool
	LabelPrefix           string
	FailOnDuplicateLabels bool

	// Core restricts output to peripherals owned by that core.
	Core *ir.Core
}

// Renderer executes one template.
type Renderer struct {
	t       Template
	tmpl    *template.Template
	name    string // template to execute
	outName string // file or directory base name
}

// Load prepares t. A custom template is read and parsed here, so a missing
// or malformed file fails before anything is written.
func Load(t Template) (*Renderer, error) {
	if !t.IsCustom() {
		name := string(t.Kind) + ".tmpl"
		if builtin.Lookup(name) == nil {
			return nil, fmt.Errorf("unknown template %q", t.Kind)
		}
		return &Renderer{t: t, tmpl: builtin, name: name, outName: t.Kind.OutputName()}, nil
	}

	src, err := os.ReadFile(t.Path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(t.Path)
	tmpl, err := template.New(base).Funcs(funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", t.Path, err)
	}
	out := base
	for _, ext := range []string{".tmpl", ".gotmpl", ".jinja"} {
		out = strings.TrimSuffix(out, ext)
	}
	return &Renderer{t: t, tmpl: tmpl, name: base, outName: out}, nil
}

// Template returns the template r executes.
func (r *Renderer) Template() Template {
	return r.t
}

// Execute renders ctx to w.
func (r *Renderer) Execute(w io.Writer, ctx *Context) error {
	if err := r.tmpl.ExecuteTemplate(w, r.name, ctx); err != nil {
		return fmt.Errorf("render %s: %w", r.t, err)
	}
	return nil
}

// Render renders a built-in template to a string.
func Render(kind Kind, ctx *Context) (string, error) {
	r, err := Load(Template{Kind: kind})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Generate renders x with t into outDir and returns the written paths.
//
// OneFile writes <name>.rs (custom templates: the file name without its
// template extension). PerPeripheral writes <peripheral>.rs per peripheral
// and a mod.rs listing them; built-in templates put these under
// outDir/<name>/. File system errors are returned as is.
func Generate(x *ir.Ir, t Template, outDir string, opts Options) ([]string, error) {
	r, err := Load(t)
	if err != nil {
		return nil, err
	}
	return r.Generate(x, outDir, opts)
}

// Generate is Generate with a loaded template.
func (r *Renderer) Generate(x *ir.Ir, outDir string, opts Options) ([]string, error) {
	if opts.Core != nil {
		x = heuristics.FilterByCore(x, *opts.Core)
	}
	ctx, err := NewContext(x, opts)
	if err != nil {
		return nil, err
	}

	dir := outDir
	if opts.Layout == PerPeripheral {
		dir = filepath.Join(outDir, r.moduleDir())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	if opts.Layout == OneFile {
		name := r.outName
		if filepath.Ext(name) == "" {
			name += ".rs"
		}
		path := filepath.Join(dir, name)
		if err := r.writeFile(path, ctx); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var written []string
	var mods []string
	for _, name := range x.Peripherals.Keys() {
		sub, err := heuristics.SubsetForPeripheral(x, name)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, name+".rs")
		if err := r.writeFile(path, ctx.with(sub, name)); err != nil {
			return written, err
		}
		written = append(written, path)
		mods = append(mods, name)
	}
	path, err := writeModFile(dir, mods)
	if err != nil {
		return written, err
	}
	return append(written, path), nil
}

// moduleDir is the directory a PerPeripheral rendering writes into.
func (r *Renderer) moduleDir() string {
	if !r.t.IsCustom() {
		return r.outName
	}
	name := strings.TrimSuffix(r.outName, filepath.Ext(r.outName))
	if name == "" {
		return r.outName
	}
	return name
}

func (r *Renderer) writeFile(path string, ctx *Context) error {
	var buf bytes.Buffer
	if err := r.Execute(&buf, ctx); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	slog.Debug("wrote file", "path", path, "template", r.t.String(), "bytes", buf.Len())
	return nil
}

// writeModFile writes dir/mod.rs declaring each module behind a feature.
func writeModFile(dir string, modules []string) (string, error) {
	var buf bytes.Buffer
	if err := builtin.ExecuteTemplate(&buf, "mod.tmpl", &Context{Modules: modules}); err != nil {
		return "", fmt.Errorf("render mod.rs: %w", err)
	}
	path := filepath.Join(dir, "mod.rs")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	slog.Debug("wrote file", "path", path, "modules", len(modules))
	return path, nil
}

// Forms records which outputs a board generation produced.
type Forms struct {
	HAL       bool
	PAC       bool
	Summary   bool
	PinReport bool
}

// Modules returns the module names of the present forms, in fixed order.
func (f Forms) Modules() []string {
	var out []string
	if f.HAL {
		out = append(out, KindHAL.OutputName())
	}
	if f.PAC {
		out = append(out, KindPAC.OutputName())
	}
	if f.Summary {
		out = append(out, KindSimple.OutputName())
	}
	if f.PinReport {
		out = append(out, KindPinReport.OutputName())
	}
	return out
}

// Add marks the form a built-in kind produces.
func (f *Forms) Add(k Kind) {
	switch k {
	case KindHAL:
		f.HAL = true
	case KindPAC:
		f.PAC = true
	case KindSimple:
		f.Summary = true
	case KindPinReport:
		f.PinReport = true
	}
}

// EmitBoardModule writes outDir/mod.rs exposing the generated forms.
func EmitBoardModule(outDir string, f Forms) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	return writeModFile(outDir, f.Modules())
}
