package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func plumber(name, phone string, scraped time.Time) model.Record {
	return model.Record{
		BusinessName: name,
		Phone:        phone,
		Address:      "12 Main St",
		City:         "Tampa",
		State:        "FL",
		Category:     "Plumber",
		ScrapedAt:    scraped,
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertAndGetRecords", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec := plumber("Ace Plumbing", "+18135550100", time.Now().UTC())
		rec.Email = "Info@AcePlumbing.com"
		id, err := s.InsertRecord(ctx, rec)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		got, err := s.GetRecords(ctx, []string{id, "missing"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, id, got[0].ID)
		assert.Equal(t, "Ace Plumbing", got[0].BusinessName)
		assert.Equal(t, "Info@AcePlumbing.com", got[0].Email)

		none, err := s.GetRecords(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("MatcherQueries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec := plumber("Ace Plumbing", "+18135550100", time.Now().UTC())
		rec.Email = "Info@AcePlumbing.com"
		id, err := s.InsertRecord(ctx, rec)
		require.NoError(t, err)

		byPhone, err := s.FindByPhone(ctx, "+18135550100")
		require.NoError(t, err)
		require.NotNil(t, byPhone)
		assert.Equal(t, id, byPhone.ID)

		byEmail, err := s.FindByEmail(ctx, "info@aceplumbing.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, id, byEmail.ID)

		byIdentity, err := s.FindByIdentity(ctx, "ACE PLUMBING", "12 main st", "tampa", "fl")
		require.NoError(t, err)
		require.NotNil(t, byIdentity)
		assert.Equal(t, id, byIdentity.ID)

		miss, err := s.FindByPhone(ctx, "+15125550100")
		require.NoError(t, err)
		assert.Nil(t, miss)

		local, err := s.ListByLocation(ctx, "Tampa", "FL", 10)
		require.NoError(t, err)
		assert.Len(t, local, 1)

		elsewhere, err := s.ListByLocation(ctx, "Miami", "FL", 10)
		require.NoError(t, err)
		assert.Empty(t, elsewhere)
	})

	t.Run("UpdateFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec := plumber("Ace Plumbing", "+18135550100", time.Now().UTC())
		rec.Email = "joe@aceplumbing.com"
		id, err := s.InsertRecord(ctx, rec)
		require.NoError(t, err)

		now := time.Now().UTC()
		err = s.UpdateFields(ctx, id, model.FieldUpdate{
			model.FieldWebsite:        "https://aceplumbing.com",
			model.FieldEmail:          model.Clear,
			model.FieldEmailVerified:  false,
			model.FieldQualityScore:   70,
			model.FieldIsEnriched:     true,
			model.FieldLastEnrichedAt: now,
		})
		require.NoError(t, err)

		got, err := s.GetRecords(ctx, []string{id})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "https://aceplumbing.com", got[0].Website)
		assert.Empty(t, got[0].Email)
		require.NotNil(t, got[0].EmailVerified)
		assert.False(t, *got[0].EmailVerified)
		assert.Equal(t, intPtr(70), got[0].QualityScore)
		assert.True(t, got[0].IsEnriched)

		byEmail, err := s.FindByEmail(ctx, "joe@aceplumbing.com")
		require.NoError(t, err)
		assert.Nil(t, byEmail, "cleared email no longer matches")

		assert.Error(t, s.UpdateFields(ctx, "missing", model.FieldUpdate{model.FieldCity: "Austin"}))
		assert.NoError(t, s.UpdateFields(ctx, "missing", model.FieldUpdate{}))
	})

	t.Run("FindUnenrichedNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour)

		oldID, err := s.InsertRecord(ctx, plumber("Old Plumbing", "+18135550101", base))
		require.NoError(t, err)
		newID, err := s.InsertRecord(ctx, plumber("New Plumbing", "+18135550102", base.Add(time.Minute)))
		require.NoError(t, err)
		done := plumber("Done Plumbing", "+18135550103", base.Add(2*time.Minute))
		done.IsEnriched = true
		_, err = s.InsertRecord(ctx, done)
		require.NoError(t, err)

		got, err := s.FindUnenriched(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newID, got[0].ID)
		assert.Equal(t, oldID, got[1].ID)

		one, err := s.FindUnenriched(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, one, 1)
	})

	t.Run("FindStaleAndReset", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		stale := plumber("Stale Plumbing", "+18135550104", now.Add(-60*24*time.Hour))
		stale.IsEnriched = true
		stale.LastEnrichedAt = timePtr(now.Add(-40 * 24 * time.Hour))
		staleID, err := s.InsertRecord(ctx, stale)
		require.NoError(t, err)

		fresh := plumber("Fresh Plumbing", "+18135550105", now.Add(-10*24*time.Hour))
		fresh.IsEnriched = true
		fresh.LastEnrichedAt = timePtr(now.Add(-2 * 24 * time.Hour))
		_, err = s.InsertRecord(ctx, fresh)
		require.NoError(t, err)

		_, err = s.InsertRecord(ctx, plumber("Never Plumbing", "+18135550106", now))
		require.NoError(t, err)

		got, err := s.FindStale(ctx, now.Add(-30*24*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, staleID, got[0].ID)

		require.NoError(t, s.ResetEnriched(ctx, []string{staleID}))
		pending, err := s.FindUnenriched(ctx, 10)
		require.NoError(t, err)
		var ids []string
		for _, r := range pending {
			ids = append(ids, r.ID)
			if r.ID == staleID {
				assert.False(t, r.IsEnriched)
				assert.NotNil(t, r.LastEnrichedAt, "reset keeps the enrichment history")
			}
		}
		assert.Contains(t, ids, staleID)
	})

	t.Run("ListRecordsAndStats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		a := plumber("Ace Plumbing", "+18135550100", now)
		a.QualityScore = intPtr(80)
		a.IsEnriched = true
		b := plumber("Best Plumbing", "+18135550107", now)
		b.QualityScore = intPtr(40)
		c := plumber("Austin Electric", "+15125550100", now)
		c.City, c.State, c.Category = "Austin", "TX", "Electrician"
		c.QualityScore = intPtr(60)
		for _, r := range []model.Record{a, b, c} {
			_, err := s.InsertRecord(ctx, r)
			require.NoError(t, err)
		}

		fl, err := s.ListRecords(ctx, RecordFilter{State: "fl"})
		require.NoError(t, err)
		require.Len(t, fl, 2)
		assert.Equal(t, "Ace Plumbing", fl[0].BusinessName, "highest quality first")

		good, err := s.ListRecords(ctx, RecordFilter{MinQuality: 50})
		require.NoError(t, err)
		assert.Len(t, good, 2)

		enriched, err := s.ListRecords(ctx, RecordFilter{EnrichedOnly: true, Category: "plumb"})
		require.NoError(t, err)
		require.Len(t, enriched, 1)
		assert.Equal(t, "Ace Plumbing", enriched[0].BusinessName)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, st.TotalRecords)
		assert.Equal(t, 1, st.EnrichedRecords)
		assert.Equal(t, 2, st.UnenrichedRecords)
		assert.InDelta(t, 60.0, st.AvgQualityScore, 0.001)
		require.NotEmpty(t, st.TopStates)
		assert.Equal(t, model.CountByKey{Key: "FL", Count: 2}, st.TopStates[0])
		assert.Equal(t, model.CountByKey{Key: "Plumber", Count: 2}, st.TopCategories[0])
	})

	t.Run("RunLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunKindReEnrich, map[string]any{"days": 30})
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		stale := 2
		summary := &model.Summary{Total: 2, Success: 2, StaleFound: &stale}
		require.NoError(t, s.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary, ""))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunKindReEnrich, got.Kind)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		assert.Equal(t, float64(30), got.Params["days"])
		require.NotNil(t, got.Summary)
		assert.Equal(t, 2, got.Summary.Success)
		assert.Equal(t, &stale, got.Summary.StaleFound)

		_, err = s.GetRun(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Error(t, s.UpdateRunStatus(ctx, "nonexistent", model.RunStatusFailed))
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r1, err := s.CreateRun(ctx, model.RunKindEnrich, nil)
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, model.RunKindIngest, nil)
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, r1.ID, model.RunStatusFailed))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, r1.ID, failed[0].ID)

		ingests, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindIngest})
		require.NoError(t, err)
		assert.Len(t, ingests, 1)

		paged, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, paged, 1)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}
