package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

var (
	enrichLimit   int
	enrichIDs     []string
	reEnrichDays  int
	reEnrichLimit int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich unenriched records, or specific records by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocked(cmd, func(ctx context.Context, env *appEnv) (*model.Run, error) {
			if len(enrichIDs) > 0 {
				return env.Pipeline.EnrichIDs(ctx, enrichIDs)
			}
			limit := enrichLimit
			if limit <= 0 {
				limit = cfg.Batch.DefaultLimit
			}
			return env.Pipeline.EnrichPending(ctx, limit)
		})
	},
}

var reEnrichCmd = &cobra.Command{
	Use:   "re-enrich",
	Short: "Re-enrich records whose last enrichment is older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocked(cmd, func(ctx context.Context, env *appEnv) (*model.Run, error) {
			days := reEnrichDays
			if days <= 0 {
				days = cfg.Batch.StaleDays
			}
			limit := reEnrichLimit
			if limit <= 0 {
				limit = cfg.Batch.DefaultLimit
			}
			return env.Pipeline.ReEnrichStale(ctx, days, limit)
		})
	},
}

// runLocked runs fn under the run lock with a signal-aware context and
// prints the resulting summary.
func runLocked(cmd *cobra.Command, fn func(context.Context, *appEnv) (*model.Run, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := acquireRunLock(cfg.Store.LockFile)
	if err != nil {
		return err
	}
	defer lock.Unlock() //nolint:errcheck

	env, err := initEnv(ctx, "enrich")
	if err != nil {
		return err
	}
	defer env.Close()

	run, err := fn(ctx, env)
	if run != nil {
		writeRunSummary(os.Stdout, run)
	}
	return err
}

// writeRunSummary prints the outcome of a run as a two-column table.
func writeRunSummary(w io.Writer, run *model.Run) {
	rows := [][]string{
		{"run", run.ID},
		{"kind", string(run.Kind)},
		{"status", string(run.Status)},
	}
	if s := run.Summary; s != nil {
		if s.StaleFound != nil {
			rows = append(rows, []string{"stale found", strconv.Itoa(*s.StaleFound)})
		}
		if run.Kind == model.RunKindIngest {
			rows = append(rows,
				[]string{"found", strconv.Itoa(s.Found)},
				[]string{"new", strconv.Itoa(s.New)},
				[]string{"updated", strconv.Itoa(s.Updated)},
				[]string{"skipped", strconv.Itoa(s.Skipped)},
			)
		}
		rows = append(rows,
			[]string{"total", strconv.Itoa(s.Total)},
			[]string{"success", strconv.Itoa(s.Success)},
			[]string{"failed", strconv.Itoa(s.Failed)},
		)
	}
	if run.Error != "" {
		rows = append(rows, []string{"error", run.Error})
	}
	_, _ = fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max records to enrich (default from batch.default_limit)")
	enrichCmd.Flags().StringSliceVar(&enrichIDs, "ids", nil, "enrich only these record ids")
	reEnrichCmd.Flags().IntVar(&reEnrichDays, "days", 0, "staleness threshold in days (default from batch.stale_days)")
	reEnrichCmd.Flags().IntVar(&reEnrichLimit, "limit", 0, "max records to re-enrich (default from batch.default_limit)")

	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(reEnrichCmd)
}
