package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/generate"
	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	AllowReserved bool
	MCU           string
	Package       string
	AF            afFlags
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <input>",
		Short: "Check a board description without generating",
		Long: `Load a board description, resolve its AF numbers and check the result
against the IR invariants and the CUE board schema. Nothing is written.
With --format json the validated IR is printed.`,
		Example:       `  bspgen validate board.ioc --vendor-db st.tar.zst`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.AllowReserved, "allow-reserved", false, "allow configuring SWD pins PA13/PA14")
	cmd.Flags().StringVar(&opts.MCU, "mcu", "", "MCU part number for C input")
	cmd.Flags().StringVar(&opts.Package, "package", "", "package name for C input")
	opts.AF.bind(cmd)

	return cmd
}

// ValidateResult is the JSON payload of the validate command.
type ValidateResult struct {
	Input       string `json:"input"`
	Fingerprint string `json:"fingerprint"`
	IR          *ir.Ir `json:"ir"`
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, input string) error {
	formatter := opts.formatter(cmd)

	x, err := generate.Load(context.Background(), generate.Request{
		Input:         input,
		AllowReserved: opts.AllowReserved,
		AF:            opts.AF.source(),
		Vendor:        opts.AF.Vendor,
		MCU:           opts.MCU,
		Package:       opts.Package,
	})
	if err != nil {
		return formatter.Fail("validation failed", err)
	}
	if err := x.Validate(); err != nil {
		return formatter.Fail("validation failed", err)
	}
	if err := schema.Validate(x); err != nil {
		return formatter.Fail("validation failed", err)
	}
	fp, err := ir.Fingerprint(x)
	if err != nil {
		return formatter.Fail("validation failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(ValidateResult{Input: input, Fingerprint: fp, IR: x})
	}
	return formatter.Success(fmt.Sprintf("✓ %s valid: %s, %d pin(s), %d peripheral(s)",
		input, x.MCU, len(x.Pinctrl), x.Peripherals.Len()))
}
