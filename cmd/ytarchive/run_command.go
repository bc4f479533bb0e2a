package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"ytarchive/internal/config"
	"ytarchive/internal/deps"
	"ytarchive/internal/logging"
	"ytarchive/internal/preflight"
	"ytarchive/internal/services"
	"ytarchive/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var count int
	var noUpload bool
	var withSync bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recover interrupted uploads, then download and upload pending videos",
		Long: `Run performs an optional catalog sync, a recovery pass that finishes uploads
left behind by an earlier run, and a main pass over the oldest pending videos.

Only one run may hold the state directory at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := workflow.RunOptions{Count: count, Upload: !noUpload, Sync: withSync}
			return withRunLock(cmd, ctx, func(runCtx context.Context, rt *app) error {
				if err := requireBinaries(runCtx, rt.cfg); err != nil {
					return err
				}
				if err := rt.provisionAccounts(runCtx); err != nil {
					return err
				}
				summary, err := rt.orch.Run(runCtx, opts)
				if jsonOutput {
					if encErr := writeJSON(cmd.OutOrStdout(), summary); encErr != nil {
						return encErr
					}
				} else {
					printRunSummary(cmd.OutOrStdout(), summary)
				}
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Maximum pending videos for the main pass (0 = all)")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "Download only; skip uploads and the recovery pass")
	cmd.Flags().BoolVar(&withSync, "sync", false, "Sync the catalog before processing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")
	return cmd
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the catalog from the source channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunLock(cmd, ctx, func(runCtx context.Context, rt *app) error {
				if err := rt.provisionAccounts(runCtx); err != nil {
					return err
				}
				summary, err := rt.orch.Sync(runCtx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listed %d videos: %d new, %d updated, %d skipped\n",
					summary.Listed, summary.New, summary.Updated, summary.Skipped)
				return nil
			})
		},
	}
}

// withRunLock holds the single-instance lock and a signal-aware context for fn.
func withRunLock(cmd *cobra.Command, ctx *commandContext, fn func(context.Context, *app) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another ytarchive run holds %s", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts runtimeOptions
	out := cmd.OutOrStdout()
	if isTerminal(out) {
		bars := newUploadProgress(out)
		defer bars.stop()
		opts.progress = bars.update
	}
	rt, err := ctx.buildRuntime(signalCtx, opts)
	if err != nil {
		return err
	}
	rt.logger.Debug("run lock acquired", logging.String("lock", cfg.LockPath()))
	return fn(signalCtx, rt)
}

func requireBinaries(ctx context.Context, cfg *config.Config) error {
	missing := deps.Missing(preflight.CheckSystemDeps(ctx, cfg))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
	}
	return services.Wrap(services.ErrExternalTool, "run", "preflight", "missing "+strings.Join(names, ", "), nil)
}

func printRunSummary(out io.Writer, summary workflow.RunSummary) {
	if summary.Sync != nil {
		fmt.Fprintf(out, "Sync: %d listed, %d new, %d updated, %d skipped\n",
			summary.Sync.Listed, summary.Sync.New, summary.Sync.Updated, summary.Sync.Skipped)
	}
	rows := [][]string{
		passRow("Recovery", summary.Recovery),
		passRow("Main", summary.Main),
		passRow("Total", summary.Totals()),
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "Pass"},
		{header: "Processed", numeric: true},
		{header: "Skipped", numeric: true},
		{header: "Failed", numeric: true},
	}, rows))
	fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, formatDuration(summary.Duration))
}

func passRow(name string, p workflow.PassSummary) []string {
	return []string{name, strconv.Itoa(p.Processed), strconv.Itoa(p.Skipped), strconv.Itoa(p.Failed)}
}

