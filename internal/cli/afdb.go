package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/afdb"
	"github.com/roach88/bspgen/internal/generate"
	"github.com/roach88/bspgen/internal/store"
)

// NewAFDBCommand creates the afdb command group.
func NewAFDBCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "afdb",
		Short: "Manage alternate-function databases",
	}
	cmd.AddCommand(newAFDBImportCommand(rootOpts))
	cmd.AddCommand(newAFDBLookupCommand(rootOpts))
	cmd.AddCommand(newAFDBListCommand(rootOpts))
	return cmd
}

// AFDBImportOptions holds flags for afdb import.
type AFDBImportOptions struct {
	*RootOptions
	Index  string
	Vendor string
	MCU    string
}

func newAFDBImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AFDBImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <archive|pin-table.json>",
		Short: "Index a vendor archive into SQLite",
		Long: `Index every MCU pin table of a vendor archive into a SQLite database.
With --mcu the argument is a single pin table JSON document instead.`,
		Example: `  bspgen afdb import st.tar.zst --index af.db
  bspgen afdb import STM32H747XIHx.json --mcu STM32H747XIHx --index af.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAFDBImport(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Index, "index", "", "SQLite database path (required)")
	cmd.Flags().StringVar(&opts.Vendor, "vendor", generate.DefaultVendor, "vendor the entries belong to")
	cmd.Flags().StringVar(&opts.MCU, "mcu", "", "import a single pin table for this MCU")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

// AFDBImportResult is the JSON payload of afdb import.
type AFDBImportResult struct {
	Vendor string   `json:"vendor"`
	MCUs   []string `json:"mcus"`
	Rows   int      `json:"rows"`
}

func runAFDBImport(cmd *cobra.Command, opts *AFDBImportOptions, path string) error {
	formatter := opts.formatter(cmd)
	ctx := context.Background()

	st, err := store.Open(opts.Index)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("failed to open database: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	res := AFDBImportResult{Vendor: opts.Vendor}
	if opts.MCU != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return formatter.Fail("import failed", err)
		}
		t, err := afdb.ParsePinTable(data)
		if err != nil {
			return formatter.Fail("import failed", err)
		}
		res.Rows, err = st.ImportTable(ctx, opts.Vendor, opts.MCU, t)
		if err != nil {
			return formatter.Fail("import failed", err)
		}
		res.MCUs = []string{opts.MCU}
	} else {
		v, err := afdb.OpenArchiveVendor(opts.Vendor, path)
		if err != nil {
			return formatter.Fail("import failed", err)
		}
		a, err := afdb.Shared(v)
		if err != nil {
			return formatter.Fail("import failed", err)
		}
		if res.MCUs, err = a.MCUs(); err != nil {
			return formatter.Fail("import failed", err)
		}
		res.Rows, err = st.ImportArchive(ctx, opts.Vendor, a)
		if err != nil {
			return formatter.Fail("import failed", err)
		}
	}

	formatter.VerboseLog("Indexed %d row(s) into %s", res.Rows, opts.Index)
	if opts.Format == "json" {
		return formatter.Success(res)
	}
	return formatter.Success(fmt.Sprintf("✓ Indexed %d AF entries for %d MCU(s) under vendor %s", res.Rows, len(res.MCUs), res.Vendor))
}

// AFDBLookupOptions holds flags for afdb lookup.
type AFDBLookupOptions struct {
	*RootOptions
	AF afFlags
}

func newAFDBLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AFDBLookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup <mcu> <pin> <signal>",
		Short: "Resolve the AF number of a pin signal",
		Long: `Resolve the AF number of a pin signal through the same chain generate
uses: --af-json, then --af-index, then --vendor-db, then the fallback table.`,
		Example:       `  bspgen afdb lookup STM32H747XIHx PA9 USART1_TX --af-index af.db`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAFDBLookup(cmd, opts, args[0], args[1], args[2])
		},
	}
	opts.AF.bind(cmd)

	return cmd
}

// AFDBLookupResult is the JSON payload of afdb lookup.
type AFDBLookupResult struct {
	MCU    string `json:"mcu"`
	Pin    string `json:"pin"`
	Signal string `json:"signal"`
	AF     uint8  `json:"af"`
}

func runAFDBLookup(cmd *cobra.Command, opts *AFDBLookupOptions, mcu, pin, signal string) error {
	formatter := opts.formatter(cmd)
	pin = strings.ToUpper(pin)

	r, err := opts.AF.source().Resolver(context.Background(), mcu)
	if err != nil {
		return formatter.Fail("lookup failed", err)
	}
	af, ok := r.LookupAF(mcu, pin, signal)
	if !ok {
		msg := fmt.Sprintf("no AF for %s %s on %s", pin, signal, mcu)
		_ = formatter.Error(ErrCodeUnresolvedAF, msg, map[string]string{"pin": pin, "signal": signal})
		return NewExitError(ExitFailure, msg)
	}

	res := AFDBLookupResult{MCU: mcu, Pin: pin, Signal: signal, AF: af}
	if opts.Format == "json" {
		return formatter.Success(res)
	}
	return formatter.Success(fmt.Sprintf("%s %s AF%d", pin, signal, af))
}

// AFDBListOptions holds flags for afdb list.
type AFDBListOptions struct {
	*RootOptions
	Index  string
	Vendor string
}

func newAFDBListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AFDBListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List the MCUs in an AF index",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAFDBList(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Index, "index", "", "SQLite database path (required)")
	cmd.Flags().StringVar(&opts.Vendor, "vendor", "", "only list this vendor")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func runAFDBList(cmd *cobra.Command, opts *AFDBListOptions) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(opts.Index); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Index), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Index)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("failed to open database: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	mcus, err := st.MCUs(context.Background(), opts.Vendor)
	if err != nil {
		return formatter.Fail("list failed", err)
	}
	if opts.Format == "json" {
		return formatter.Success(mcus)
	}
	if len(mcus) == 0 {
		return formatter.Success("No MCUs indexed")
	}
	return formatter.Success(strings.Join(mcus, "\n"))
}
