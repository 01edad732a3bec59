// Package ingest turns raw listings from producers into stored records:
// each listing is cleaned, matched against the store and then merged into
// its duplicate or inserted as a new business.
package ingest

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/clean"
	"github.com/blok-blok-studio/leadscraper/internal/dedup"
	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/scorer"
)

// Producer supplies raw listings for a category in a location. Listing
// scrapers for specific directories implement it.
type Producer interface {
	Name() string
	Search(ctx context.Context, category, location string, pages int) ([]model.Record, error)
}

// Registry maps producer names to producers.
type Registry map[string]Producer

// Get returns the named producer.
func (r Registry) Get(name string) (Producer, error) {
	p, ok := r[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(r))
		for n := range r {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, eris.Errorf("ingest: unknown source %q (available: %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}

// Store is the persistence the ingestor writes to.
type Store interface {
	dedup.Lookup
	InsertRecord(ctx context.Context, rec model.Record) (string, error)
	UpdateFields(ctx context.Context, id string, u model.FieldUpdate) error
	CreateRun(ctx context.Context, kind model.RunKind, params map[string]any) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary, errMsg string) error
}

// Outcome is what Upsert did with one listing.
type Outcome string

const (
	OutcomeNew     Outcome = "new"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Ingestor cleans, deduplicates and stores listings.
type Ingestor struct {
	store   Store
	matcher *dedup.Matcher
}

// New creates an Ingestor.
func New(st Store, matcher *dedup.Matcher) *Ingestor {
	return &Ingestor{store: st, matcher: matcher}
}

// Upsert stores one raw listing. Rejected listings and duplicates that add
// nothing are skipped; a duplicate with new data is merged into the stored
// record, keeping the stored name.
func (i *Ingestor) Upsert(ctx context.Context, raw model.Record) (Outcome, error) {
	rec, err := clean.Record(raw)
	if err != nil {
		zap.L().Debug("ingest: rejected", zap.String("name", raw.BusinessName), zap.Error(err))
		return OutcomeSkipped, nil
	}

	conflict, err := i.matcher.Match(ctx, rec)
	if err != nil {
		return OutcomeSkipped, eris.Wrapf(err, "ingest: match %s", rec.BusinessName)
	}
	if conflict == nil {
		rec.ID = ""
		if _, err := i.store.InsertRecord(ctx, rec); err != nil {
			return OutcomeSkipped, eris.Wrapf(err, "ingest: insert %s", rec.BusinessName)
		}
		return OutcomeNew, nil
	}

	merged, changed, err := dedup.Merge(conflict.Existing, rec)
	if err != nil {
		return OutcomeSkipped, eris.Wrapf(err, "ingest: merge %s", rec.BusinessName)
	}
	if len(changed) == 0 {
		return OutcomeSkipped, nil
	}
	if q := scorer.Completeness(merged); merged.QualityScore == nil || *merged.QualityScore != q {
		changed.Set(model.FieldQualityScore, q)
	}
	if err := i.store.UpdateFields(ctx, conflict.Existing.ID, changed); err != nil {
		return OutcomeSkipped, eris.Wrapf(err, "ingest: update %s", conflict.Existing.ID)
	}
	return OutcomeUpdated, nil
}

// Ingest upserts listings in order and tallies the outcomes. A listing that
// fails to store counts as failed; the rest continue.
func (i *Ingestor) Ingest(ctx context.Context, raw []model.Record) model.Summary {
	sum := model.Summary{Found: len(raw), Total: len(raw)}
	for _, r := range raw {
		if ctx.Err() != nil {
			sum.Failed += len(raw) - sum.New - sum.Updated - sum.Skipped - sum.Failed
			break
		}
		out, err := i.Upsert(ctx, r)
		if err != nil {
			sum.Failed++
			zap.L().Warn("ingest: listing failed", zap.String("name", r.BusinessName), zap.Error(err))
			continue
		}
		switch out {
		case OutcomeNew:
			sum.New++
		case OutcomeUpdated:
			sum.Updated++
		default:
			sum.Skipped++
		}
	}
	sum.Success = sum.New + sum.Updated + sum.Skipped
	return sum
}

// Run collects listings from p and ingests them as one recorded run.
func (i *Ingestor) Run(ctx context.Context, p Producer, category, location string, pages int) (*model.Run, error) {
	run, err := i.store.CreateRun(ctx, model.RunKindIngest, map[string]any{
		"source":   p.Name(),
		"category": category,
		"location": location,
		"pages":    pages,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create run")
	}

	log := zap.L().With(zap.String("run_id", run.ID), zap.String("source", p.Name()))
	raw, err := p.Search(ctx, category, location, pages)
	if err != nil {
		log.Error("ingest: producer failed", zap.Error(err))
		run.Status, run.Error = model.RunStatusFailed, err.Error()
		if cerr := i.store.CompleteRun(ctx, run.ID, run.Status, nil, run.Error); cerr != nil {
			log.Warn("ingest: complete run", zap.Error(cerr))
		}
		return run, eris.Wrapf(err, "ingest: search %s", p.Name())
	}

	sum := i.Ingest(ctx, raw)
	log.Info("ingest: complete",
		zap.String("category", category),
		zap.String("location", location),
		zap.Int("found", sum.Found),
		zap.Int("new", sum.New),
		zap.Int("updated", sum.Updated),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)

	run.Status, run.Summary = model.RunStatusComplete, &sum
	if err := i.store.CompleteRun(ctx, run.ID, run.Status, &sum, ""); err != nil {
		return run, eris.Wrap(err, "ingest: complete run")
	}
	return run, nil
}
