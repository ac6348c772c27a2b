package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bspgen/internal/generate"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Parallel int
	History  string
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Run several generations from a YAML manifest",
		Long: `Run every job of a YAML manifest, in parallel. Relative paths in the
manifest are taken from its directory. The first failing job stops the batch.`,
		Example:       `  bspgen batch boards.yaml --parallel 4 --history runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "j", 0, "maximum concurrent jobs (default: manifest value, 0 = unbounded)")
	cmd.Flags().StringVar(&opts.History, "history", "", "SQLite database to record runs in (overrides the manifest)")

	return cmd
}

func runBatch(cmd *cobra.Command, opts *BatchOptions, path string) error {
	formatter := opts.formatter(cmd)

	m, reqs, err := generate.LoadManifest(path)
	if err != nil {
		return formatter.Fail("failed to load manifest", err)
	}
	parallel := m.Parallel
	if cmd.Flags().Changed("parallel") {
		parallel = opts.Parallel
	}
	if opts.History != "" {
		for i := range reqs {
			reqs[i].History = opts.History
		}
	}

	formatter.VerboseLog("Running %d job(s) from %s (parallel=%d)", len(reqs), path, parallel)
	results, err := generate.RunBatch(context.Background(), reqs, parallel)
	if err != nil {
		return formatter.Fail("batch failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(results)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Ran %d job(s)", len(results))
	for _, res := range results {
		fmt.Fprintf(&b, "\n  %s: %s, %d file(s)", res.Input, res.MCU, len(res.Files))
	}
	return formatter.Success(b.String())
}
