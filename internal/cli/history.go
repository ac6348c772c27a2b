package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB          string
	Limit       int
	Fingerprint string
	MCU         string
	Template    string
	Layout      string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded generation runs",
		Long: `Show the runs recorded with --history, newest first. With --fingerprint
every run that produced that IR is shown, oldest first. --mcu, --template
and --layout narrow the list further.`,
		Example: `  bspgen history --db runs.db --limit 10
  bspgen history --db runs.db --fingerprint 3f2a...
  bspgen history --db runs.db --mcu STM32H747XIHx --template hal`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to show (0 = all)")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only show runs with this IR fingerprint")
	cmd.Flags().StringVar(&opts.MCU, "mcu", "", "only show runs for this MCU")
	cmd.Flags().StringVar(&opts.Template, "template", "", "only show runs with this template")
	cmd.Flags().StringVar(&opts.Layout, "layout", "", "only show runs with this layout")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(opts.DB); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DB), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.DB)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("failed to open database: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	filter := store.RunFilter{
		MCU:         opts.MCU,
		Fingerprint: opts.Fingerprint,
		Template:    opts.Template,
		Layout:      opts.Layout,
		Limit:       opts.Limit,
	}
	if opts.Fingerprint != "" {
		filter.Limit = 0
		filter.OldestFirst = true
	}
	runs, err := st.FindRuns(context.Background(), filter)
	if err != nil {
		return formatter.Fail("failed to read history", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		return formatter.Success("No runs recorded")
	}
	var b strings.Builder
	for i, r := range runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "#%d %s %s %s %s %s (%d file(s))",
			r.Seq, shortFingerprint(r.Fingerprint), r.MCU, r.Template, r.Layout, r.Input, len(r.Files))
	}
	return formatter.Success(b.String())
}
