package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Read-modify-write transactions must not race for the write lock.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps on records are unix nanoseconds so range filters compare numbers.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id               TEXT PRIMARY KEY,
	business_name    TEXT NOT NULL,
	phone            TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	quality_score    INTEGER,
	is_enriched      INTEGER NOT NULL DEFAULT 0,
	scraped_at       INTEGER NOT NULL,
	last_enriched_at INTEGER,
	data             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_phone ON records(phone);
CREATE INDEX IF NOT EXISTS idx_records_email ON records(email);
CREATE INDEX IF NOT EXISTS idx_records_location ON records(state, city);
CREATE INDEX IF NOT EXISTS idx_records_unenriched ON records(is_enriched, scraped_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_last_enriched ON records(last_enriched_at);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	params     TEXT,
	summary    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

const sqliteRecordColumns = `id, business_name, phone, email, address, city, state, category,
	quality_score, is_enriched, scraped_at, last_enriched_at, data`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Records ---

func (s *SQLiteStore) InsertRecord(ctx context.Context, rec model.Record) (string, error) {
	row, err := newRecordRow(rec)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (`+sqliteRecordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sqliteArgs(row)...,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert record %s", row.BusinessName)
	}
	return row.ID, nil
}

func (s *SQLiteStore) GetRecords(ctx context.Context, ids []string) ([]model.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryRecords(ctx, "get records",
		`SELECT data FROM records WHERE id IN (`+placeholders(len(ids))+`) ORDER BY scraped_at DESC`,
		args...,
	)
}

// UpdateFields applies u to the stored record inside one transaction.
func (s *SQLiteStore) UpdateFields(ctx context.Context, id string, u model.FieldUpdate) error {
	if len(u) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin update")
	}
	defer tx.Rollback() //nolint:errcheck

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM records WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return eris.Errorf("record not found: %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: load record %s", id)
	}

	row, err := applyUpdate(id, []byte(data), u)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE records SET business_name = ?, phone = ?, email = ?, address = ?, city = ?, state = ?,
		 category = ?, quality_score = ?, is_enriched = ?, scraped_at = ?, last_enriched_at = ?, data = ?
		 WHERE id = ?`,
		append(sqliteArgs(row)[1:], id)...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record %s", id)
	}
	if err := checkRowsAffected(res, "record", id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit update")
}

func (s *SQLiteStore) FindUnenriched(ctx context.Context, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx, "find unenriched",
		`SELECT data FROM records WHERE is_enriched = 0 ORDER BY scraped_at DESC LIMIT ?`,
		listLimit(limit),
	)
}

func (s *SQLiteStore) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx, "find stale",
		`SELECT data FROM records WHERE last_enriched_at IS NOT NULL AND last_enriched_at < ?
		 ORDER BY last_enriched_at ASC LIMIT ?`,
		olderThan.UnixNano(), listLimit(limit),
	)
}

func (s *SQLiteStore) ResetEnriched(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.UpdateFields(ctx, id, model.FieldUpdate{model.FieldIsEnriched: false}); err != nil {
			return eris.Wrap(err, "sqlite: reset enriched")
		}
	}
	return nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT data FROM records WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, strings.ToUpper(filter.State))
	}
	if filter.Category != "" {
		query += ` AND lower(category) LIKE ?`
		args = append(args, "%"+strings.ToLower(filter.Category)+"%")
	}
	if filter.MinQuality > 0 {
		query += ` AND quality_score >= ?`
		args = append(args, filter.MinQuality)
	}
	if filter.EnrichedOnly {
		query += ` AND is_enriched = 1`
	}
	query += ` ORDER BY quality_score DESC, scraped_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return s.queryRecords(ctx, "list records", query, args...)
}

// --- Matcher queries ---

func (s *SQLiteStore) FindByPhone(ctx context.Context, phone string) (*model.Record, error) {
	return s.queryOne(ctx, "find by phone", `SELECT data FROM records WHERE phone = ? LIMIT 1`, phone)
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*model.Record, error) {
	return s.queryOne(ctx, "find by email", `SELECT data FROM records WHERE email = ? LIMIT 1`, strings.ToLower(email))
}

func (s *SQLiteStore) FindByIdentity(ctx context.Context, name, address, city, state string) (*model.Record, error) {
	return s.queryOne(ctx, "find by identity",
		`SELECT data FROM records
		 WHERE lower(business_name) = lower(?) AND lower(address) = lower(?)
		   AND lower(city) = lower(?) AND upper(state) = upper(?)
		 LIMIT 1`,
		name, address, city, state,
	)
}

func (s *SQLiteStore) ListByLocation(ctx context.Context, city, state string, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx, "list by location",
		`SELECT data FROM records WHERE lower(city) = lower(?) AND upper(state) = upper(?)
		 ORDER BY scraped_at DESC LIMIT ?`,
		city, state, listLimit(limit),
	)
}

// --- Stats ---

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_enriched), 0), AVG(quality_score) FROM records`,
	).Scan(&st.TotalRecords, &st.EnrichedRecords, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats totals")
	}
	st.UnenrichedRecords = st.TotalRecords - st.EnrichedRecords
	st.AvgQualityScore = avg.Float64

	if st.TopStates, err = s.countBy(ctx, "state"); err != nil {
		return nil, err
	}
	if st.TopCategories, err = s.countBy(ctx, "category"); err != nil {
		return nil, err
	}
	return &st, nil
}

// countBy groups on a fixed column name; column is never user input.
func (s *SQLiteStore) countBy(ctx context.Context, column string) ([]model.CountByKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) AS n FROM records WHERE `+column+` != ''
		 GROUP BY `+column+` ORDER BY n DESC, `+column+` ASC LIMIT ?`,
		topN,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: count by %s", column)
	}
	defer rows.Close()

	var out []model.CountByKey
	for rows.Next() {
		var c model.CountByKey
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan count by %s", column)
		}
		out = append(out, c)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: count by %s iterate", column)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, kind model.RunKind, params map[string]any) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Status:    model.RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary, errMsg string) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func (s *SQLiteStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		rec, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) queryOne(ctx context.Context, op, query string, args ...any) (*model.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	rec, err := decodeRecord([]byte(data))
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func sqliteArgs(r recordRow) []any {
	var lastEnriched any
	if r.LastEnrichedAt != nil {
		lastEnriched = r.LastEnrichedAt.UnixNano()
	}
	var quality any
	if r.QualityScore != nil {
		quality = *r.QualityScore
	}
	enriched := 0
	if r.IsEnriched {
		enriched = 1
	}
	return []any{
		r.ID, r.BusinessName, r.Phone, r.Email, r.Address, r.City, r.State, r.Category,
		quality, enriched, r.ScrapedAt.UnixNano(), lastEnriched, string(r.Data),
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var paramsJSON, summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Kind, &r.Status, &paramsJSON, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "sqlite: run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRunJSON(&r, nullBytes(paramsJSON), nullBytes(summaryJSON)); err != nil {
		return nil, err
	}
	return &r, nil
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}

func decodeRunJSON(r *model.Run, params, summary []byte) error {
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &r.Params); err != nil {
			return eris.Wrap(err, "store: unmarshal run params")
		}
	}
	if len(summary) > 0 && string(summary) != "null" {
		r.Summary = &model.Summary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return eris.Wrap(err, "store: unmarshal run summary")
		}
	}
	return nil
}
