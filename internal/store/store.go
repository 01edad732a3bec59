package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blok-blok-studio/leadscraper/internal/dedup"
	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// ErrNotFound is returned when a run lookup matches nothing.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	State        string `json:"state,omitempty"`
	Category     string `json:"category,omitempty"`
	MinQuality   int    `json:"min_quality,omitempty"`
	EnrichedOnly bool   `json:"enriched_only,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for ingestion and enrichment.
type Store interface {
	// Matcher queries
	dedup.Lookup

	// Records
	InsertRecord(ctx context.Context, rec model.Record) (string, error)
	GetRecords(ctx context.Context, ids []string) ([]model.Record, error)
	UpdateFields(ctx context.Context, id string, u model.FieldUpdate) error
	FindUnenriched(ctx context.Context, limit int) ([]model.Record, error)
	FindStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Record, error)
	ResetEnriched(ctx context.Context, ids []string) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)
	Stats(ctx context.Context) (*model.Stats, error)

	// Runs
	CreateRun(ctx context.Context, kind model.RunKind, params map[string]any) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
