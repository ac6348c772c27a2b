package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/generate"
	"github.com/roach88/bspgen/internal/heuristics"
	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/render"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Out                   string
	Templates             []string
	GroupedWrites         bool
	WithDeinit            bool
	AllowReserved         bool
	PerPeripheral         bool
	UseLabelNames         bool
	EmitLabelConsts       bool
	LabelPrefix           string
	FailOnDuplicateLabels bool
	InitBy                string
	Owners                []string
	Core                  string
	BoardMod              bool
	MCU                   string
	Package               string
	History               string
	AF                    afFlags
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <input>",
		Short: "Generate board support files",
		Long: `Generate board support files from a board description.

The input format follows the file: .ioc (CubeMX), .yaml with --vendor,
.c/.h or a source directory with --mcu, .cue, or .json (IR).`,
		Example: `  bspgen generate board.ioc --vendor-db st.tar.zst -o out
  bspgen generate board.ioc -t hal -t pinreport --per-peripheral --board-mod
  bspgen generate board.ioc --owner usart1=cm4 --core cm4 --init-by cm7`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "out", "output directory")
	cmd.Flags().StringArrayVarP(&opts.Templates, "template", "t", nil, "template: hal, pac, simple, pinreport or a file path (repeatable)")
	cmd.Flags().BoolVar(&opts.GroupedWrites, "grouped-writes", false, "one masked register write per GPIO port")
	cmd.Flags().BoolVar(&opts.WithDeinit, "with-deinit", false, "emit deinit functions")
	cmd.Flags().BoolVar(&opts.AllowReserved, "allow-reserved", false, "allow configuring SWD pins PA13/PA14")
	cmd.Flags().BoolVar(&opts.PerPeripheral, "per-peripheral", false, "one file per peripheral plus mod.rs")
	cmd.Flags().BoolVar(&opts.UseLabelNames, "use-label-names", false, "name pin variables after their labels")
	cmd.Flags().BoolVar(&opts.EmitLabelConsts, "emit-label-consts", false, "emit a constant per labelled pin")
	cmd.Flags().StringVar(&opts.LabelPrefix, "label-prefix", "", "prefix for identifiers starting with a digit (default pin_)")
	cmd.Flags().BoolVar(&opts.FailOnDuplicateLabels, "fail-on-duplicate-labels", false, "fail when two labels sanitize to the same identifier")
	cmd.Flags().StringVar(&opts.InitBy, "init-by", "", "core that configures the clock tree (cm7|cm4)")
	cmd.Flags().StringArrayVar(&opts.Owners, "owner", nil, "peripheral ownership, e.g. usart1=cm4 (repeatable)")
	cmd.Flags().StringVar(&opts.Core, "core", "", "only emit peripherals owned by this core (cm7|cm4)")
	cmd.Flags().BoolVar(&opts.BoardMod, "board-mod", false, "write a board mod.rs exposing the generated forms")
	cmd.Flags().StringVar(&opts.MCU, "mcu", "", "MCU part number for C input")
	cmd.Flags().StringVar(&opts.Package, "package", "", "package name for C input")
	cmd.Flags().StringVar(&opts.History, "history", "", "SQLite database to record the run in")
	opts.AF.bind(cmd)

	return cmd
}

// request converts the flags into a generation request.
func (o *GenerateOptions) request(input string) (generate.Request, error) {
	layout := render.OneFile
	if o.PerPeripheral {
		layout = render.PerPeripheral
	}
	owners, err := heuristics.ParseOwners(o.Owners...)
	if err != nil {
		return generate.Request{}, err
	}
	initBy, err := parseCoreFlag(o.InitBy)
	if err != nil {
		return generate.Request{}, fmt.Errorf("--init-by: %w", err)
	}
	core, err := parseCoreFlag(o.Core)
	if err != nil {
		return generate.Request{}, fmt.Errorf("--core: %w", err)
	}
	return generate.Request{
		Input:                 input,
		OutDir:                o.Out,
		Templates:             o.Templates,
		Layout:                layout,
		GroupedWrites:         o.GroupedWrites,
		WithDeinit:            o.WithDeinit,
		AllowReserved:         o.AllowReserved,
		UseLabelNames:         o.UseLabelNames,
		EmitLabelConsts:       o.EmitLabelConsts,
		LabelPrefix:           o.LabelPrefix,
		FailOnDuplicateLabels: o.FailOnDuplicateLabels,
		InitBy:                initBy,
		Owners:                owners,
		Core:                  core,
		BoardMod:              o.BoardMod,
		AF:                    o.AF.source(),
		Vendor:                o.AF.Vendor,
		MCU:                   o.MCU,
		Package:               o.Package,
		History:               o.History,
	}, nil
}

func parseCoreFlag(s string) (*ir.Core, error) {
	if s == "" {
		return nil, nil
	}
	c, err := heuristics.ParseCore(s)
	if err != nil {
		return nil, err
	}
	return ir.CorePtr(c), nil
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions, input string) error {
	formatter := opts.formatter(cmd)

	req, err := opts.request(input)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	formatter.VerboseLog("Generating %s into %s", input, req.OutDir)
	res, err := generate.Run(context.Background(), req)
	if err != nil {
		return formatter.Fail("generate failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(res)
	}
	return formatter.Success(formatResult(res))
}

// formatResult renders a result as text.
func formatResult(res *generate.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Generated %d file(s) for %s (fingerprint %s)", len(res.Files), res.MCU, shortFingerprint(res.Fingerprint))
	for _, f := range res.Files {
		fmt.Fprintf(&b, "\n  %s", f)
	}
	if res.BoardModule != "" {
		fmt.Fprintf(&b, "\n  %s", res.BoardModule)
	}
	for _, id := range res.RunIDs {
		fmt.Fprintf(&b, "\n  recorded run %s", id)
	}
	return b.String()
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
