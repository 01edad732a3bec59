package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/blok-blok-studio/leadscraper/internal/db"
	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the per-record hot path.
var preparedStatements = map[string]string{
	"find_by_phone":     `SELECT data FROM records WHERE phone = $1 LIMIT 1`,
	"find_by_email":     `SELECT data FROM records WHERE email = $1 LIMIT 1`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business_name    TEXT NOT NULL,
	phone            TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	quality_score    INTEGER,
	is_enriched      BOOLEAN NOT NULL DEFAULT false,
	scraped_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_enriched_at TIMESTAMPTZ,
	data             JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_phone ON records(phone) WHERE phone != '';
CREATE INDEX IF NOT EXISTS idx_records_email ON records(email) WHERE email != '';
CREATE INDEX IF NOT EXISTS idx_records_location ON records(lower(state), lower(city));
CREATE INDEX IF NOT EXISTS idx_records_unenriched ON records(scraped_at DESC) WHERE NOT is_enriched;
CREATE INDEX IF NOT EXISTS idx_records_last_enriched ON records(last_enriched_at);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB,
	summary    JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Records ---

func (s *PostgresStore) InsertRecord(ctx context.Context, rec model.Record) (string, error) {
	row, err := newRecordRow(rec)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (id, business_name, phone, email, address, city, state, category,
		 quality_score, is_enriched, scraped_at, last_enriched_at, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		postgresArgs(row)...,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert record %s", row.BusinessName)
	}
	return row.ID, nil
}

func (s *PostgresStore) GetRecords(ctx context.Context, ids []string) ([]model.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryRecords(ctx, "get records",
		`SELECT data FROM records WHERE id = ANY($1) ORDER BY scraped_at DESC`,
		ids,
	)
}

// UpdateFields applies u to the stored record under a row lock.
func (s *PostgresStore) UpdateFields(ctx context.Context, id string, u model.FieldUpdate) error {
	if len(u) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin update")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM records WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Errorf("record not found: %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: load record %s", id)
	}

	row, err := applyUpdate(id, data, u)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE records SET business_name = $1, phone = $2, email = $3, address = $4, city = $5,
		 state = $6, category = $7, quality_score = $8, is_enriched = $9, scraped_at = $10,
		 last_enriched_at = $11, data = $12 WHERE id = $13`,
		append(postgresArgs(row)[1:], id)...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit update")
}

func (s *PostgresStore) FindUnenriched(ctx context.Context, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx, "find unenriched",
		`SELECT data FROM records WHERE NOT is_enriched ORDER BY scraped_at DESC LIMIT $1`,
		listLimit(limit),
	)
}

func (s *PostgresStore) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx, "find stale",
		`SELECT data FROM records WHERE last_enriched_at < $1 ORDER BY last_enriched_at ASC LIMIT $2`,
		olderThan.UTC(), listLimit(limit),
	)
}

func (s *PostgresStore) ResetEnriched(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE records SET is_enriched = false, data = jsonb_set(data, '{is_enriched}', 'false')
		 WHERE id = ANY($1)`,
		ids,
	)
	return eris.Wrap(err, "postgres: reset enriched")
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT data FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, strings.ToUpper(filter.State))
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category ILIKE $%d`, argIdx)
		args = append(args, "%"+filter.Category+"%")
		argIdx++
	}
	if filter.MinQuality > 0 {
		query += fmt.Sprintf(` AND quality_score >= $%d`, argIdx)
		args = append(args, filter.MinQuality)
		argIdx++
	}
	if filter.EnrichedOnly {
		query += ` AND is_enriched`
	}
	query += ` ORDER BY quality_score DESC NULLS LAST, scraped_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}
	return s.queryRecords(ctx, "list records", query, args...)
}

// --- Matcher queries ---

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*model.Record, error) {
	return s.queryOne(ctx, "find by phone", `SELECT data FROM records WHERE phone = $1 LIMIT 1`, phone)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*model.Record, error) {
	return s.queryOne(ctx, "find by email", `SELECT data FROM records WHERE email = $1 LIMIT 1`, strings.ToLower(email))
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, name, address, city, state string) (*model.Record, error) {
	return s.queryOne(ctx, "find by identity",
		`SELECT data FROM records
		 WHERE lower(business_name) = lower($1) AND lower(address) = lower($2)
		   AND lower(city) = lower($3) AND lower(state) = lower($4)
		 LIMIT 1`,
		name, address, city, state,
	)
}

func (s *PostgresStore) ListByLocation(ctx context.Context, city, state string, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx, "list by location",
		`SELECT data FROM records WHERE lower(state) = lower($1) AND lower(city) = lower($2)
		 ORDER BY scraped_at DESC LIMIT $3`,
		state, city, listLimit(limit),
	)
}

// --- Stats ---

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_enriched), COALESCE(AVG(quality_score), 0)::float8 FROM records`,
	).Scan(&st.TotalRecords, &st.EnrichedRecords, &st.AvgQualityScore)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}
	st.UnenrichedRecords = st.TotalRecords - st.EnrichedRecords

	if st.TopStates, err = s.countBy(ctx, "state"); err != nil {
		return nil, err
	}
	if st.TopCategories, err = s.countBy(ctx, "category"); err != nil {
		return nil, err
	}
	return &st, nil
}

// countBy groups on a fixed column name; column is never user input.
func (s *PostgresStore) countBy(ctx context.Context, column string) ([]model.CountByKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+column+`, COUNT(*) AS n FROM records WHERE `+column+` != ''
		 GROUP BY `+column+` ORDER BY n DESC, `+column+` ASC LIMIT $1`,
		topN,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: count by %s", column)
	}
	defer rows.Close()

	var out []model.CountByKey
	for rows.Next() {
		var c model.CountByKey
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan count by %s", column)
		}
		out = append(out, c)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: count by %s iterate", column)
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind, params map[string]any) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(kind), string(model.RunStatusRunning), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary, errMsg string) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), summaryJSON, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// helpers

func (s *PostgresStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "postgres: %s scan", op)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func (s *PostgresStore) queryOne(ctx context.Context, op, query string, args ...any) (*model.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func postgresArgs(r recordRow) []any {
	return []any{
		r.ID, r.BusinessName, r.Phone, r.Email, r.Address, r.City, r.State, r.Category,
		r.QualityScore, r.IsEnriched, r.ScrapedAt.UTC(), r.LastEnrichedAt, r.Data,
	}
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var kind, status string
	var params, summary []byte
	if err := row.Scan(&r.ID, &kind, &status, &params, &summary, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	if err := decodeRunJSON(&r, params, summary); err != nil {
		return nil, err
	}
	return &r, nil
}
