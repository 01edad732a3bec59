package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func recordJSON(t *testing.T, rec model.Record) []byte {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return data
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS records`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(pgxmock.AnyArg(), "Ace Plumbing", "+18135550100", "info@aceplumbing.com", "", "Tampa", "FL", "",
			pgxmock.AnyArg(), false, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.InsertRecord(context.Background(), model.Record{
		BusinessName: "Ace Plumbing",
		Phone:        "+18135550100",
		Email:        "Info@AcePlumbing.com",
		City:         "Tampa",
		State:        "FL",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByPhone(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := model.Record{ID: "a1", BusinessName: "Ace Plumbing", Phone: "+18135550100"}

	mock.ExpectQuery(`SELECT data FROM records WHERE phone = \$1`).
		WithArgs("+18135550100").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(recordJSON(t, rec)))

	got, err := s.FindByPhone(context.Background(), "+18135550100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByEmail_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM records WHERE email = \$1`).
		WithArgs("info@aceplumbing.com").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.FindByEmail(context.Background(), "INFO@aceplumbing.com")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := model.Record{ID: "a1", BusinessName: "Ace Plumbing", Email: "joe@aceplumbing.com"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM records WHERE id = \$1 FOR UPDATE`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(recordJSON(t, rec)))
	mock.ExpectExec(`UPDATE records SET`).
		WithArgs("Ace Plumbing", "", "", "", "", "", "", pgxmock.AnyArg(), true,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "a1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.UpdateFields(context.Background(), "a1", model.FieldUpdate{
		model.FieldEmail:      model.Clear,
		model.FieldIsEnriched: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateFields_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM records WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := s.UpdateFields(context.Background(), "missing", model.FieldUpdate{model.FieldCity: "Tampa"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindStale(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT data FROM records WHERE last_enriched_at < \$1`).
		WithArgs(cutoff, 25).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow(recordJSON(t, model.Record{ID: "s1", BusinessName: "Stale Co"})).
			AddRow(recordJSON(t, model.Record{ID: "s2", BusinessName: "Older Co"})))

	got, err := s.FindStale(context.Background(), cutoff, 25)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResetEnriched(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE records SET is_enriched = false`).
		WithArgs([]string{"a1", "a2"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, s.ResetEnriched(context.Background(), []string{"a1", "a2"}))
	require.NoError(t, s.ResetEnriched(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecords_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`AND state = \$1 AND category ILIKE \$2 AND quality_score >= \$3 AND is_enriched ORDER BY .* LIMIT \$4`).
		WithArgs("FL", "%plumb%", 50, 10).
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	got, err := s.ListRecords(context.Background(), RecordFilter{
		State: "fl", Category: "plumb", MinQuality: 50, EnrichedOnly: true, Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "status", "params", "summary", "error", "created_at", "updated_at"}).
			AddRow("r1", "enrich", "complete", []byte(`{"limit":50}`), []byte(`{"total":5,"success":5,"failed":0}`), "", now, now))

	run, err := s.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.RunKindEnrich, run.Kind)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, float64(50), run.Params["limit"])
	require.NotNil(t, run.Summary)
	assert.Equal(t, 5, run.Summary.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, summary = \$2`).
		WithArgs("complete", pgxmock.AnyArg(), "", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", model.RunStatusComplete, &model.Summary{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Stats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "enriched", "avg"}).AddRow(4, 3, 62.5))
	mock.ExpectQuery(`SELECT state, COUNT\(\*\)`).
		WithArgs(topN).
		WillReturnRows(pgxmock.NewRows([]string{"state", "n"}).AddRow("FL", 3).AddRow("TX", 1))
	mock.ExpectQuery(`SELECT category, COUNT\(\*\)`).
		WithArgs(topN).
		WillReturnRows(pgxmock.NewRows([]string{"category", "n"}).AddRow("Plumber", 4))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalRecords)
	assert.Equal(t, 1, st.UnenrichedRecords)
	assert.Equal(t, 62.5, st.AvgQualityScore)
	assert.Equal(t, []model.CountByKey{{Key: "FL", Count: 3}, {Key: "TX", Count: 1}}, st.TopStates)
	assert.NoError(t, mock.ExpectationsWereMet())
}
