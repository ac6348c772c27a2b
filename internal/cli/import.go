package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/generate"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Board         string
	Out           string
	Template      string
	AllowReserved bool
	AF            afFlags
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <project.ioc>",
		Short: "Convert a CubeMX project into a board overlay",
		Long: `Convert a CubeMX project into a board overlay JSON document
(board, chip, pins -> signal -> AF) that a vendor archive can carry.`,
		Example: `  bspgen import board.ioc --board STM32H747I-DISCO --out boards/disco.json --vendor-db st.tar.zst`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Board, "board", "", "board name (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "overlay output path (required)")
	cmd.Flags().StringVar(&opts.Template, "template", "", "template recorded in the overlay")
	cmd.Flags().BoolVar(&opts.AllowReserved, "allow-reserved", false, "allow configuring SWD pins PA13/PA14")
	opts.AF.bind(cmd)
	_ = cmd.MarkFlagRequired("board")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// ImportResult is the JSON payload of the import command.
type ImportResult struct {
	Board string `json:"board"`
	Chip  string `json:"chip"`
	Pins  int    `json:"pins"`
	Out   string `json:"out"`
}

func runImport(cmd *cobra.Command, opts *ImportOptions, ioc string) error {
	formatter := opts.formatter(cmd)

	ov, err := generate.ImportBoard(context.Background(), generate.ImportRequest{
		IOC:           ioc,
		Board:         opts.Board,
		Out:           opts.Out,
		Template:      opts.Template,
		AF:            opts.AF.source(),
		AllowReserved: opts.AllowReserved,
	})
	if err != nil {
		return formatter.Fail("import failed", err)
	}

	res := ImportResult{Board: ov.Board, Chip: ov.Chip, Pins: ov.Pins.Len(), Out: opts.Out}
	if opts.Format == "json" {
		return formatter.Success(res)
	}
	return formatter.Success(fmt.Sprintf("✓ Imported %s (%s) with %d pin(s) to %s", res.Board, res.Chip, res.Pins, res.Out))
}

