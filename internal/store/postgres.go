package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/review-scout/internal/db"
	"github.com/sells-group/review-scout/internal/model"
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

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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
CREATE TABLE IF NOT EXISTS places (
	place_id         TEXT PRIMARY KEY,
	data_id          TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	total_reviews    INTEGER NOT NULL DEFAULT 0,
	last_review_date TEXT NOT NULL DEFAULT '',
	provider         TEXT NOT NULL DEFAULT '',
	place_url        TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reviews (
	review_id            TEXT PRIMARY KEY,
	place_id             TEXT NOT NULL,
	rating               INTEGER NOT NULL DEFAULT 0,
	date                 TEXT NOT NULL DEFAULT '',
	reviewer_name        TEXT NOT NULL DEFAULT '',
	reviewer_profile_url TEXT NOT NULL DEFAULT '',
	text                 TEXT NOT NULL DEFAULT '',
	summary              TEXT NOT NULL DEFAULT '',
	owner_reply          TEXT NOT NULL DEFAULT '',
	review_url           TEXT NOT NULL DEFAULT '',
	humor_score          INTEGER NOT NULL DEFAULT 0,
	humor_notes          TEXT NOT NULL DEFAULT '',
	safety_label         TEXT NOT NULL DEFAULT '',
	safety_notes         TEXT NOT NULL DEFAULT '',
	tags                 TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'new',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shortlist (
	review_id  TEXT PRIMARY KEY REFERENCES reviews(review_id),
	batch_date TEXT NOT NULL,
	score      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ingest_stats (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	event      TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	command     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_reviews_place_id ON reviews(place_id);
CREATE INDEX IF NOT EXISTS idx_reviews_status_score ON reviews(status, humor_score DESC);
CREATE INDEX IF NOT EXISTS idx_shortlist_batch_date ON shortlist(batch_date);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	for _, col := range additiveColumns {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", col.Table, col.Column, col.DDL)
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "postgres: add column %s.%s", col.Table, col.Column)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Places ---

func (s *PostgresStore) UpsertPlace(ctx context.Context, p model.Place) error {
	_, err := s.pool.Exec(ctx, placeUpsertSQL(db.Postgres), placeArgs(p, time.Now().UTC())...)
	return eris.Wrapf(err, "postgres: upsert place %s", p.PlaceID)
}

func (s *PostgresStore) ListPlaceLookupIDs(ctx context.Context) ([]string, error) {
	places, err := s.listPlaces(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(places))
	for _, p := range places {
		ids = append(ids, p.LookupID())
	}
	return ids, nil
}

func (s *PostgresStore) PlaceMap(ctx context.Context) (map[string]model.Place, error) {
	places, err := s.listPlaces(ctx)
	if err != nil {
		return nil, err
	}
	return indexPlaces(places), nil
}

func (s *PostgresStore) listPlaces(ctx context.Context) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx, placeSelect+` ORDER BY created_at ASC, place_id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list places")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, *p)
	}
	return places, eris.Wrap(rows.Err(), "postgres: list places iterate")
}

// --- Reviews ---

func (s *PostgresStore) UpsertReview(ctx context.Context, r model.Review) error {
	_, err := s.pool.Exec(ctx, reviewUpsertSQL(db.Postgres),
		reviewArgs(r, initialStatus(r), time.Now().UTC())...)
	return eris.Wrapf(err, "postgres: upsert review %s", r.ReviewID)
}

// GetReview returns nil without error when the review does not exist.
func (s *PostgresStore) GetReview(ctx context.Context, reviewID string) (*model.Review, error) {
	r, err := scanReview(s.pool.QueryRow(ctx, reviewSelect+` WHERE review_id = $1`, reviewID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get review %s", reviewID)
	}
	return r, nil
}

func (s *PostgresStore) FetchCandidates(ctx context.Context, filter CandidateFilter) ([]model.Review, error) {
	where, args := candidateWhere(filter, db.Postgres.Placeholder)
	query := reviewSelect + ` WHERE ` + where + ` ORDER BY humor_score DESC, review_id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch candidates")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		reviews = append(reviews, *r)
	}
	return reviews, eris.Wrap(rows.Err(), "postgres: fetch candidates iterate")
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, reviewID string, status model.ReviewStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reviews SET status = $1, updated_at = $2 WHERE review_id = $3`,
		string(status), time.Now().UTC(), reviewID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", reviewID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("review not found: %s", reviewID)
	}
	return nil
}

// --- Shortlist ---

func (s *PostgresStore) MarkShortlist(ctx context.Context, entry model.ShortlistEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin shortlist tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE reviews SET status = $1, updated_at = $2 WHERE review_id = $3`,
		string(model.ReviewStatusSelected), now, entry.ReviewID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: select review %s", entry.ReviewID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("review not found: %s", entry.ReviewID)
	}

	if _, err := tx.Exec(ctx, shortlistUpsertSQL(db.Postgres),
		entry.ReviewID, entry.BatchDate, entry.Score, now); err != nil {
		return eris.Wrapf(err, "postgres: upsert shortlist %s", entry.ReviewID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit shortlist tx")
}

func (s *PostgresStore) ListShortlist(ctx context.Context, batchDate string) ([]model.ShortlistEntry, error) {
	query := `SELECT review_id, batch_date, score FROM shortlist`
	var args []any
	if batchDate != "" {
		query += ` WHERE batch_date = $1`
		args = append(args, batchDate)
	}
	query += ` ORDER BY score DESC, review_id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list shortlist")
	}
	defer rows.Close()

	var entries []model.ShortlistEntry
	for rows.Next() {
		var e model.ShortlistEntry
		if err := rows.Scan(&e.ReviewID, &e.BatchDate, &e.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: scan shortlist")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list shortlist iterate")
}

// --- Ingest stats ---

func (s *PostgresStore) RecordStat(ctx context.Context, event string, count int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_stats (event, count, created_at) VALUES ($1, $2, $3)`,
		event, count, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record stat %s", event)
}

func (s *PostgresStore) ListStats(ctx context.Context, limit int) ([]model.IngestStat, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT event, count, created_at FROM ingest_stats ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stats")
	}
	defer rows.Close()

	var stats []model.IngestStat
	for rows.Next() {
		var st model.IngestStat
		if err := rows.Scan(&st.Event, &st.Count, &st.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: list stats iterate")
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, command string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, command, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, command, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Command:   command,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats map[string]int) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), statsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, command, status, stats, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var statsJSON []byte
		if err := rows.Scan(&r.ID, &r.Command, &r.Status, &statsJSON, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run stats")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
