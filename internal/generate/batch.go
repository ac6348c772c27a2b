package generate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bspgen/internal/heuristics"
	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/render"
)

// Manifest lists the boards of a batch run.
//
//	parallel: 4
//	history: runs.db
//	jobs:
//	  - input: boards/disco.ioc
//	    out: build/disco
//	    templates: [hal, pac]
//	    vendor_db: db/st.tar.zst
type Manifest struct {
	Parallel int    `yaml:"parallel"`
	History  string `yaml:"history"`
	Jobs     []Job  `yaml:"jobs"`
}

// Job is one manifest entry. Relative paths are taken from the manifest's
// directory.
type Job struct {
	Input                 string   `yaml:"input"`
	Out                   string   `yaml:"out"`
	Templates             []string `yaml:"templates"`
	Layout                string   `yaml:"layout"`
	GroupedWrites         bool     `yaml:"grouped_writes"`
	WithDeinit            bool     `yaml:"with_deinit"`
	AllowReserved         bool     `yaml:"allow_reserved"`
	UseLabelNames         bool     `yaml:"use_label_names"`
	EmitLabelConsts       bool     `yaml:"emit_label_consts"`
	LabelPrefix           string   `yaml:"label_prefix"`
	FailOnDuplicateLabels bool     `yaml:"fail_on_duplicate_labels"`
	InitBy                string   `yaml:"init_by"`
	Owners                []string `yaml:"owners"` // "usart1=cm4"
	Core                  string   `yaml:"core"`
	BoardMod              bool     `yaml:"board_mod"`
	AFJSON                string   `yaml:"af_json"`
	VendorDB              string   `yaml:"vendor_db"`
	AFIndex               string   `yaml:"af_index"`
	Vendor                string   `yaml:"vendor"`
	MCU                   string   `yaml:"mcu"`
	Package               string   `yaml:"package"`
}

// ParseManifest decodes manifest YAML strictly: unknown keys are errors.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, ir.NewDeserialize("batch manifest", err)
	}
	if len(m.Jobs) == 0 {
		return nil, ir.NewNoInputFiles("batch jobs")
	}
	return &m, nil
}

// LoadManifest reads path and converts every job into a Request. Read
// errors are returned unwrapped.
func LoadManifest(path string) (*Manifest, []Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, nil, err
	}
	base := filepath.Dir(path)
	reqs := make([]Request, 0, len(m.Jobs))
	for i, j := range m.Jobs {
		req, err := j.Request(base)
		if err != nil {
			return nil, nil, fmt.Errorf("job %d: %w", i, err)
		}
		if m.History != "" {
			req.History = resolvePath(base, m.History)
		}
		reqs = append(reqs, req)
	}
	return m, reqs, nil
}

// Request converts j, resolving relative paths against base.
func (j Job) Request(base string) (Request, error) {
	if j.Input == "" {
		return Request{}, ir.NewMissingField("input")
	}
	layout, err := render.ParseLayout(j.Layout)
	if err != nil {
		return Request{}, err
	}
	owners, err := heuristics.ParseOwners(j.Owners...)
	if err != nil {
		return Request{}, err
	}
	req := Request{
		Input:                 resolvePath(base, j.Input),
		OutDir:                resolvePath(base, j.Out),
		Layout:                layout,
		GroupedWrites:         j.GroupedWrites,
		WithDeinit:            j.WithDeinit,
		AllowReserved:         j.AllowReserved,
		UseLabelNames:         j.UseLabelNames,
		EmitLabelConsts:       j.EmitLabelConsts,
		LabelPrefix:           j.LabelPrefix,
		FailOnDuplicateLabels: j.FailOnDuplicateLabels,
		Owners:                owners,
		BoardMod:              j.BoardMod,
		AF: AFSource{
			JSON:     resolvePath(base, j.AFJSON),
			VendorDB: resolvePath(base, j.VendorDB),
			Index:    resolvePath(base, j.AFIndex),
			Vendor:   j.Vendor,
		},
		Vendor:  j.Vendor,
		MCU:     j.MCU,
		Package: j.Package,
	}
	for _, t := range j.Templates {
		if tmpl := render.ParseTemplate(t); tmpl.IsCustom() {
			t = resolvePath(base, t)
		}
		req.Templates = append(req.Templates, t)
	}
	if j.InitBy != "" {
		c, err := heuristics.ParseCore(j.InitBy)
		if err != nil {
			return Request{}, err
		}
		req.InitBy = ir.CorePtr(c)
	}
	if j.Core != "" {
		c, err := heuristics.ParseCore(j.Core)
		if err != nil {
			return Request{}, err
		}
		req.Core = ir.CorePtr(c)
	}
	if req.OutDir == "" {
		req.OutDir = base
	}
	return req, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// RunBatch runs reqs concurrently, at most parallel at a time (unbounded
// when parallel <= 0). Results keep the order of reqs. The first failure
// cancels the jobs not yet started and is returned.
//
// History is written after all jobs finish, in request order, so run
// sequence numbers follow the manifest rather than completion order.
func RunBatch(ctx context.Context, reqs []Request, parallel int) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, req := range reqs {
		req.History = ""
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Run(gctx, req)
			if err != nil {
				return fmt.Errorf("job %d (%s): %w", i, req.Input, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, req := range reqs {
		if req.History == "" {
			continue
		}
		if err := Record(ctx, req.History, req, results[i]); err != nil {
			return nil, err
		}
	}
	slog.Info("batch complete", "jobs", len(reqs))
	return results, nil
}
