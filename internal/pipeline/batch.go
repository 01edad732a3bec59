package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/strategy"
)

// EnrichBatch enriches records in fixed-size batches. Every batch gets a
// fresh transport session and cleared batch-scoped strategy state. A record
// whose write fails counts as failed without stopping its siblings.
func (p *Pipeline) EnrichBatch(ctx context.Context, records []model.Record) model.Summary {
	sum := model.Summary{Total: len(records)}
	size := p.cfg.BatchSize

	for start := 0; start < len(records); start += size {
		if ctx.Err() != nil {
			sum.Failed += len(records) - start
			zap.L().Warn("pipeline: batch aborted", zap.Int("remaining", len(records)-start), zap.Error(ctx.Err()))
			break
		}
		batch := records[start:min(start+size, len(records))]
		success, failed := p.runBatch(ctx, batch)
		sum.Success += success
		sum.Failed += failed

		zap.L().Info("pipeline: batch complete",
			zap.Int("progress", start+len(batch)),
			zap.Int("total", len(records)),
			zap.Int("success", sum.Success),
			zap.Int("failed", sum.Failed),
		)
	}
	return sum
}

func (p *Pipeline) runBatch(ctx context.Context, batch []model.Record) (success, failed int) {
	sess := p.sessions()
	defer sess.Close()
	for _, s := range p.catalog.all() {
		if b, ok := s.(strategy.BatchScoped); ok {
			b.ResetBatch()
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(len(batch))
	for _, rec := range batch {
		g.Go(func() error {
			var err error
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					zap.L().Error("pipeline: record failed", zap.String("record", rec.ID), zap.Error(err))
					return
				}
				success++
			}()
			_, err = p.EnrichRecord(ctx, sess, rec)
			return nil
		})
	}
	_ = g.Wait()
	return success, failed
}

// EnrichPending enriches up to limit unenriched records, newest first.
func (p *Pipeline) EnrichPending(ctx context.Context, limit int) (*model.Run, error) {
	return p.recordRun(ctx, model.RunKindEnrich, map[string]any{"limit": limit},
		func(ctx context.Context) (model.Summary, error) {
			recs, err := p.store.FindUnenriched(ctx, limit)
			if err != nil {
				return model.Summary{}, eris.Wrap(err, "pipeline: find unenriched")
			}
			return p.EnrichBatch(ctx, recs), nil
		})
}

// EnrichIDs enriches the given records regardless of their enriched flag.
// Unknown ids count as failed.
func (p *Pipeline) EnrichIDs(ctx context.Context, ids []string) (*model.Run, error) {
	return p.recordRun(ctx, model.RunKindEnrichIDs, map[string]any{"ids": ids},
		func(ctx context.Context) (model.Summary, error) {
			recs, err := p.store.GetRecords(ctx, ids)
			if err != nil {
				return model.Summary{}, eris.Wrap(err, "pipeline: get records")
			}
			sum := p.EnrichBatch(ctx, recs)
			if missing := len(ids) - len(recs); missing > 0 {
				zap.L().Warn("pipeline: unknown record ids", zap.Int("missing", missing))
				sum.Total += missing
				sum.Failed += missing
			}
			return sum, nil
		})
}

// ReEnrichStale re-runs enrichment on up to limit records last enriched
// more than staleDays ago. Their enriched flag is reset before the run.
func (p *Pipeline) ReEnrichStale(ctx context.Context, staleDays, limit int) (*model.Run, error) {
	if staleDays <= 0 {
		return nil, eris.Errorf("pipeline: stale days must be positive, got %d", staleDays)
	}
	return p.recordRun(ctx, model.RunKindReEnrich, map[string]any{"days": staleDays, "limit": limit},
		func(ctx context.Context) (model.Summary, error) {
			cutoff := p.now().Add(-time.Duration(staleDays) * 24 * time.Hour)
			recs, err := p.store.FindStale(ctx, cutoff, limit)
			if err != nil {
				return model.Summary{}, eris.Wrap(err, "pipeline: find stale")
			}
			found := len(recs)
			if found == 0 {
				return model.Summary{StaleFound: &found}, nil
			}

			ids := make([]string, len(recs))
			for i := range recs {
				ids[i] = recs[i].ID
				recs[i].IsEnriched = false
			}
			if err := p.store.ResetEnriched(ctx, ids); err != nil {
				return model.Summary{StaleFound: &found}, eris.Wrap(err, "pipeline: reset enriched")
			}
			zap.L().Info("pipeline: re-enriching stale records", zap.Int("stale_found", found), zap.Time("cutoff", cutoff))

			sum := p.EnrichBatch(ctx, recs)
			sum.StaleFound = &found
			return sum, nil
		})
}

// recordRun wraps fn in a stored run. A run whose selection step fails is
// stored as failed and the error returned.
func (p *Pipeline) recordRun(ctx context.Context, kind model.RunKind, params map[string]any, fn func(context.Context) (model.Summary, error)) (*model.Run, error) {
	run, err := p.store.CreateRun(ctx, kind, params)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("kind", string(kind)))
	log.Info("pipeline: run started")

	sum, fnErr := fn(ctx)
	run.Summary = &sum
	run.Status = model.RunStatusComplete
	if fnErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = fnErr.Error()
	}

	// The run is recorded even when the caller's context is gone.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.store.CompleteRun(saveCtx, run.ID, run.Status, run.Summary, run.Error); err != nil {
		log.Warn("pipeline: complete run", zap.Error(err))
	}

	if fnErr != nil {
		log.Error("pipeline: run failed", zap.Error(fnErr))
		return run, fnErr
	}
	log.Info("pipeline: run complete",
		zap.Int("total", sum.Total),
		zap.Int("success", sum.Success),
		zap.Int("failed", sum.Failed),
	)
	return run, nil
}
