package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/store"
)

// collectLimit bounds how many of the newest runs one collection reads.
const collectLimit = 1000

// RunLister is the part of the store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// Per-record outcomes summed over finished enrichment runs in the window.
	RecordsProcessed int     `json:"records_processed"`
	RecordsFailed    int     `json:"records_failed"`
	RecordFailRate   float64 `json:"record_fail_rate"`

	// Running runs with no progress for longer than the stuck threshold,
	// regardless of when they were created.
	StuckRuns []string `json:"stuck_runs,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers run metrics from the store.
type Collector struct {
	runs       RunLister
	stuckAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. A zero stuckAfter disables stuck-run
// detection.
func NewCollector(runs RunLister, stuckAfter time.Duration) *Collector {
	return &Collector{runs: runs, stuckAfter: stuckAfter, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.Status == model.RunStatusRunning && c.stuckAfter > 0 && now.Sub(r.UpdatedAt) > c.stuckAfter {
			snap.StuckRuns = append(snap.StuckRuns, r.ID)
		}
		if r.CreatedAt.Before(cutoff) {
			continue
		}

		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}

		if r.Kind != model.RunKindIngest && r.Status == model.RunStatusComplete && r.Summary != nil {
			snap.RecordsProcessed += r.Summary.Total
			snap.RecordsFailed += r.Summary.Failed
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RecordsProcessed > 0 {
		snap.RecordFailRate = float64(snap.RecordsFailed) / float64(snap.RecordsProcessed)
	}
	return snap, nil
}
