package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/scorer"
	"github.com/blok-blok-studio/leadscraper/internal/strategy"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// Outcome is the result of enriching one record.
type Outcome struct {
	// Record is the record as persisted.
	Record model.Record
	// Update is the single write sent to the store.
	Update model.FieldUpdate
	Phases []model.PhaseResult
	// Errors are "strategy: message" entries for failed strategies.
	Errors []string
}

// EnrichRecord runs the four phases for rec and persists the accumulated
// update once. Strategy failures are recorded on the record and never
// returned; only a failed write is.
func (p *Pipeline) EnrichRecord(ctx context.Context, f transport.Fetcher, rec model.Record) (*Outcome, error) {
	log := zap.L().With(zap.String("record", rec.ID), zap.String("name", rec.BusinessName))
	out := &Outcome{Update: model.FieldUpdate{}}
	work := rec.Clone()

	track := func(u model.FieldUpdate, res model.PhaseResult, guarded bool) {
		out.Phases = append(out.Phases, res)
		if res.Status == model.PhaseStatusFailed {
			out.Errors = append(out.Errors, res.Name+": "+res.Error)
		}
		merge(&work, out.Update, u, guarded, log)
	}

	// Phase 1: each strategy sees the previous one's result.
	for _, s := range p.catalog.PhaseOne {
		u, res := p.safeRun(ctx, s, f, work, 1)
		track(u, res, true)
	}

	// Phase 2: one snapshot, concurrent calls, merge in declared order.
	snapshot := work.Clone()
	updates := make([]model.FieldUpdate, len(p.catalog.PhaseTwo))
	results := make([]model.PhaseResult, len(p.catalog.PhaseTwo))
	var g errgroup.Group
	g.SetLimit(p.cfg.PhaseTwoWorkers)
	for i, s := range p.catalog.PhaseTwo {
		if strategy.RequiresWebsite(s) && snapshot.Website == "" {
			results[i] = model.PhaseResult{Name: s.Name(), Phase: 2, Status: model.PhaseStatusSkipped}
			continue
		}
		g.Go(func() error {
			updates[i], results[i] = p.safeRun(ctx, s, f, snapshot.Clone(), 2)
			return nil
		})
	}
	_ = g.Wait()
	for i := range p.catalog.PhaseTwo {
		track(updates[i], results[i], true)
	}

	// Phase 3: verification may clear what phases 1 and 2 found.
	for _, s := range p.catalog.PhaseThree {
		u, res := p.safeRun(ctx, s, f, work, 3)
		track(u, res, true)
	}

	// Phase 4: scores over the final record.
	merge(&work, out.Update, model.FieldUpdate{
		model.FieldQualityScore: scorer.Completeness(work),
		model.FieldICPScore:     scorer.Prospect(work),
	}, false, log)

	now := p.now()
	if rec.LastEnrichedAt != nil && !now.After(*rec.LastEnrichedAt) {
		now = rec.LastEnrichedAt.Add(time.Microsecond)
	}
	meta := model.FieldUpdate{
		model.FieldIsEnriched:     true,
		model.FieldEnrichedAt:     now,
		model.FieldLastEnrichedAt: now,
	}
	switch {
	case len(out.Errors) > 0:
		meta[model.FieldEnrichmentErrors] = strings.Join(out.Errors, "; ")
	case rec.EnrichmentErrors != "":
		meta[model.FieldEnrichmentErrors] = model.Clear
	}
	merge(&work, out.Update, meta, false, log)
	out.Record = work

	if err := p.store.UpdateFields(ctx, rec.ID, out.Update); err != nil {
		return out, eris.Wrapf(err, "pipeline: persist %s", rec.ID)
	}

	log.Info("pipeline: enriched",
		zap.Intp("quality", work.QualityScore),
		zap.Intp("icp", work.ICPScore),
		zap.Int("fields", len(out.Update)),
		zap.Int("errors", len(out.Errors)),
	)
	return out, nil
}

// safeRun is the strategy boundary: returned errors and panics both become
// an empty update and a failed phase result.
func (p *Pipeline) safeRun(ctx context.Context, s strategy.Strategy, f transport.Fetcher, rec model.Record, phase int) (u model.FieldUpdate, res model.PhaseResult) {
	start := time.Now()
	res = model.PhaseResult{Name: s.Name(), Phase: phase}
	defer func() {
		if r := recover(); r != nil {
			u = nil
			res.Status = model.PhaseStatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		res.Duration = time.Since(start).Milliseconds()
		if res.Status == model.PhaseStatusFailed {
			zap.L().Warn("pipeline: strategy failed",
				zap.String("strategy", res.Name),
				zap.String("record", rec.ID),
				zap.String("error", res.Error),
			)
		}
	}()

	if p.cfg.StrategyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.StrategyTimeout)
		defer cancel()
	}

	upd, err := s.Discover(ctx, f, rec)
	if err != nil {
		res.Status = model.PhaseStatusFailed
		res.Error = err.Error()
		return nil, res
	}
	res.Status = model.PhaseStatusComplete
	res.Fields = upd.Fields()
	return upd, res
}

// merge applies u to work and folds the entries that changed work into acc.
// Guarded merges keep contact fields that are already set.
func merge(work *model.Record, acc, u model.FieldUpdate, guarded bool, log *zap.Logger) {
	if len(u) == 0 {
		return
	}
	var (
		changed model.FieldUpdate
		err     error
	)
	if guarded {
		changed, err = work.ApplyGuarded(u)
	} else {
		changed, err = work.Apply(u)
	}
	if err != nil {
		log.Debug("pipeline: merge rejected values", zap.Error(err))
	}
	acc.Merge(changed)
}
