// Package pipeline drives record enrichment: four phases of discovery
// strategies per record, batches of records in flight, one persisted write
// per record and a recorded run for every front-end operation.
package pipeline

import (
	"context"
	"time"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/strategy"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// Store is the persistence the pipeline reads from and writes to.
type Store interface {
	GetRecords(ctx context.Context, ids []string) ([]model.Record, error)
	UpdateFields(ctx context.Context, id string, u model.FieldUpdate) error
	FindUnenriched(ctx context.Context, limit int) ([]model.Record, error)
	FindStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Record, error)
	ResetEnriched(ctx context.Context, ids []string) error
	CreateRun(ctx context.Context, kind model.RunKind, params map[string]any) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary, errMsg string) error
}

// Session is a batch-scoped fetcher. Responses are shared by every strategy
// of every record in the batch until Close.
type Session interface {
	transport.Fetcher
	Close()
}

// SessionFunc opens a Session for one batch.
type SessionFunc func() Session

// ClientSessions opens sessions on a shared transport client.
func ClientSessions(c *transport.Client) SessionFunc {
	return func() Session { return c.NewSession() }
}

// Catalog is the fixed strategy graph.
type Catalog struct {
	// PhaseOne runs sequentially, each result merged before the next runs.
	PhaseOne []strategy.Strategy
	// PhaseTwo runs concurrently on one snapshot and merges in slice order.
	PhaseTwo []strategy.Strategy
	// PhaseThree runs sequentially after phase two.
	PhaseThree []strategy.Strategy
}

// DefaultCatalog builds the standard catalog.
func DefaultCatalog(deps strategy.Deps, verifier strategy.MailboxVerifier) Catalog {
	return Catalog{
		PhaseOne:   strategy.PhaseOne(deps),
		PhaseTwo:   strategy.PhaseTwo(deps),
		PhaseThree: []strategy.Strategy{strategy.NewEmailVerification(verifier)},
	}
}

func (c Catalog) all() []strategy.Strategy {
	out := make([]strategy.Strategy, 0, len(c.PhaseOne)+len(c.PhaseTwo)+len(c.PhaseThree))
	out = append(out, c.PhaseOne...)
	out = append(out, c.PhaseTwo...)
	return append(out, c.PhaseThree...)
}

// Config tunes concurrency.
type Config struct {
	// BatchSize is both the batch length and the records in flight.
	BatchSize int
	// PhaseTwoWorkers bounds the concurrent phase-two strategies per record.
	PhaseTwoWorkers int
	// StrategyTimeout bounds one strategy call. Zero means no extra bound.
	StrategyTimeout time.Duration
}

// Pipeline enriches records.
type Pipeline struct {
	store    Store
	sessions SessionFunc
	catalog  Catalog
	cfg      Config
	now      func() time.Time
}

// New creates a Pipeline with defaults for unset config values.
func New(st Store, sessions SessionFunc, catalog Catalog, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.PhaseTwoWorkers <= 0 {
		cfg.PhaseTwoWorkers = max(len(catalog.PhaseTwo), 1)
	}
	return &Pipeline{
		store:    st,
		sessions: sessions,
		catalog:  catalog,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}
