package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/afdb"
	"github.com/roach88/bspgen/internal/generate"
)

// BoardsOptions holds flags for the boards command.
type BoardsOptions struct {
	*RootOptions
	VendorDBs []string
	Vendor    string
	Board     string
}

// NewBoardsCommand creates the boards command.
func NewBoardsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BoardsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "boards",
		Short: "List the boards known to vendor archives",
		Long: `List the boards of one or more vendor archives. Each --vendor-db is
[vendor=]path; a bare path belongs to vendor "st". With --board only that
board is shown.`,
		Example: `  bspgen boards --vendor-db st.tar.zst
  bspgen boards --vendor-db st=st.tar.zst --vendor-db nxp=nxp.zst --vendor st --board STM32H747I-DISCO`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoards(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.VendorDBs, "vendor-db", nil, "vendor archive as [vendor=]path (repeatable, required)")
	cmd.Flags().StringVar(&opts.Vendor, "vendor", generate.DefaultVendor, "vendor to search with --board")
	cmd.Flags().StringVar(&opts.Board, "board", "", "show a single board")
	_ = cmd.MarkFlagRequired("vendor-db")

	return cmd
}

// parseVendorDB splits "vendor=path"; a bare path gets the default vendor.
func parseVendorDB(s string) (string, string) {
	if name, path, ok := strings.Cut(s, "="); ok && name != "" {
		return name, path
	}
	return generate.DefaultVendor, s
}

func runBoards(cmd *cobra.Command, opts *BoardsOptions) error {
	formatter := opts.formatter(cmd)

	reg := afdb.NewRegistry()
	for _, spec := range opts.VendorDBs {
		name, path := parseVendorDB(spec)
		v, err := afdb.OpenArchiveVendor(name, path)
		if err != nil {
			return formatter.Fail("failed to load vendor archive", err)
		}
		formatter.VerboseLog("Loaded vendor %s from %s (%d boards)", name, path, len(v.ListBoards()))
		reg.Register(v)
	}

	var boards []afdb.VendorBoard
	if opts.Board != "" {
		b, err := reg.FindBoard(opts.Vendor, opts.Board)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitFailure, "board not found", err)
		}
		boards = []afdb.VendorBoard{b}
	} else {
		boards = reg.Enumerate()
	}
	if boards == nil {
		boards = []afdb.VendorBoard{}
	}

	if opts.Format == "json" {
		return formatter.Success(boards)
	}
	if len(boards) == 0 {
		return formatter.Success("No boards found")
	}
	var b strings.Builder
	for i, vb := range boards {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\t%s\t%s", vb.Vendor, vb.Board, vb.Chip)
	}
	return formatter.Success(b.String())
}
