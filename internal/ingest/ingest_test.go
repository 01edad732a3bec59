package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blok-blok-studio/leadscraper/internal/dedup"
	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestIngestor(t *testing.T) (*Ingestor, *store.SQLiteStore) {
	t.Helper()
	s := newTestStore(t)
	return New(s, dedup.NewMatcher(s, dedup.Config{})), s
}

type staticProducer struct {
	records []model.Record
	err     error
}

func (p *staticProducer) Name() string { return "static" }

func (p *staticProducer) Search(context.Context, string, string, int) ([]model.Record, error) {
	return p.records, p.err
}

func TestUpsert_NewThenDuplicatePhone(t *testing.T) {
	ing, s := newTestIngestor(t)
	ctx := context.Background()

	out, err := ing.Upsert(ctx, model.Record{
		BusinessName: "Ace Plumbing",
		Phone:        "(813) 555-0100",
		City:         "Tampa",
		State:        "Florida",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, out)

	out, err = ing.Upsert(ctx, model.Record{
		BusinessName: "ACE PLUMBING LLC",
		Phone:        "813.555.0100",
		Website:      "aceplumbing.com",
		City:         "Tampa",
		State:        "FL",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)

	recs, err := s.ListRecords(ctx, store.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Ace Plumbing", recs[0].BusinessName)
	assert.Equal(t, "+18135550100", recs[0].Phone)
	assert.Equal(t, "https://aceplumbing.com", recs[0].Website)
	assert.Equal(t, "FL", recs[0].State)
}

func TestUpsert_FuzzySameCityMerges(t *testing.T) {
	ing, s := newTestIngestor(t)
	ctx := context.Background()

	_, err := ing.Upsert(ctx, model.Record{BusinessName: "Joes Plumbing", City: "Tampa", State: "FL"})
	require.NoError(t, err)
	out, err := ing.Upsert(ctx, model.Record{BusinessName: "Joe's Plumbing LLC", City: "Tampa", State: "FL", Category: "Plumber"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)

	out, err = ing.Upsert(ctx, model.Record{BusinessName: "Joe's Plumbing LLC", City: "Austin", State: "TX"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, out, "same name in another city is a different business")

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalRecords)
}

func TestUpsert_SkipsRejectedAndUnchanged(t *testing.T) {
	ing, _ := newTestIngestor(t)
	ctx := context.Background()

	out, err := ing.Upsert(ctx, model.Record{BusinessName: "Bob's Diner (CLOSED)"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)

	out, err = ing.Upsert(ctx, model.Record{BusinessName: "Maple Bakery", City: "Toronto", State: "Ontario"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)

	rec := model.Record{BusinessName: "Ace Plumbing", Phone: "8135550100"}
	_, err = ing.Upsert(ctx, rec)
	require.NoError(t, err)
	out, err = ing.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out, "duplicate with nothing new")
}

func TestRun_RecordsSummary(t *testing.T) {
	ing, s := newTestIngestor(t)
	ctx := context.Background()

	p := &staticProducer{records: []model.Record{
		{BusinessName: "Ace Plumbing", Phone: "8135550100", City: "Tampa", State: "FL"},
		{BusinessName: "Ace Plumbing", Phone: "8135550100", Email: "info@aceplumbing.com"},
		{BusinessName: "Best Roofing", Phone: "8135550199", City: "Tampa", State: "FL"},
		{BusinessName: ""},
	}}

	run, err := ing.Run(ctx, p, "plumber", "Tampa, FL", 1)
	require.NoError(t, err)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 4, run.Summary.Found)
	assert.Equal(t, 2, run.Summary.New)
	assert.Equal(t, 1, run.Summary.Updated)
	assert.Equal(t, 1, run.Summary.Skipped)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunKindIngest, got.Kind)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "static", got.Params["source"])
}

func TestRun_ProducerFailure(t *testing.T) {
	ing, s := newTestIngestor(t)
	ctx := context.Background()

	run, err := ing.Run(ctx, &staticProducer{err: errors.New("blocked")}, "plumber", "Tampa, FL", 1)
	require.Error(t, err)
	require.NotNil(t, run)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "blocked", got.Error)
}

func TestRegistry_Get(t *testing.T) {
	reg := Registry{"file": &FileProducer{}, "static": &staticProducer{}}
	p, err := reg.Get("FILE")
	require.NoError(t, err)
	assert.Equal(t, "file", p.Name())

	_, err = reg.Get("yelp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file, static")
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
