package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/review-scout/internal/db"
	"github.com/sells-group/review-scout/internal/model"
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

const sqliteMigration = `
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
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS shortlist (
	review_id  TEXT PRIMARY KEY REFERENCES reviews(review_id),
	batch_date TEXT NOT NULL,
	score      INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ingest_stats (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event      TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_reviews_place_id ON reviews(place_id);
CREATE INDEX IF NOT EXISTS idx_reviews_status_score ON reviews(status, humor_score);
CREATE INDEX IF NOT EXISTS idx_shortlist_batch_date ON shortlist(batch_date);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Migrate creates missing tables and adds optional columns to databases
// created by older versions. Existing rows are never rewritten.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	for _, col := range additiveColumns {
		existing, err := s.tableColumns(ctx, col.Table)
		if err != nil {
			return err
		}
		if existing[col.Column] {
			continue
		}
		stmt := "ALTER TABLE " + col.Table + " ADD COLUMN " + col.Column + " " + col.DDL
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "sqlite: add column %s.%s", col.Table, col.Column)
		}
	}
	return nil
}

func (s *SQLiteStore) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, ctype      string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan table info %s", table)
		}
		cols[name] = true
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: table info iterate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Places ---

func (s *SQLiteStore) UpsertPlace(ctx context.Context, p model.Place) error {
	_, err := s.db.ExecContext(ctx, placeUpsertSQL(db.SQLite), placeArgs(p, time.Now().UTC())...)
	return eris.Wrapf(err, "sqlite: upsert place %s", p.PlaceID)
}

func (s *SQLiteStore) ListPlaceLookupIDs(ctx context.Context) ([]string, error) {
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

func (s *SQLiteStore) PlaceMap(ctx context.Context) (map[string]model.Place, error) {
	places, err := s.listPlaces(ctx)
	if err != nil {
		return nil, err
	}
	return indexPlaces(places), nil
}

func (s *SQLiteStore) listPlaces(ctx context.Context) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx, placeSelect+` ORDER BY created_at ASC, place_id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list places")
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
	return places, eris.Wrap(rows.Err(), "sqlite: list places iterate")
}

// --- Reviews ---

func (s *SQLiteStore) UpsertReview(ctx context.Context, r model.Review) error {
	_, err := s.db.ExecContext(ctx, reviewUpsertSQL(db.SQLite),
		reviewArgs(r, initialStatus(r), time.Now().UTC())...)
	return eris.Wrapf(err, "sqlite: upsert review %s", r.ReviewID)
}

// GetReview returns nil without error when the review does not exist.
func (s *SQLiteStore) GetReview(ctx context.Context, reviewID string) (*model.Review, error) {
	row := s.db.QueryRowContext(ctx, reviewSelect+` WHERE review_id = ?`, reviewID)
	r, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get review %s", reviewID)
	}
	return r, nil
}

func (s *SQLiteStore) FetchCandidates(ctx context.Context, filter CandidateFilter) ([]model.Review, error) {
	where, args := candidateWhere(filter, db.SQLite.Placeholder)
	query := reviewSelect + ` WHERE ` + where + ` ORDER BY humor_score DESC, review_id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch candidates")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		reviews = append(reviews, *r)
	}
	return reviews, eris.Wrap(rows.Err(), "sqlite: fetch candidates iterate")
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, reviewID string, status model.ReviewStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET status = ?, updated_at = ? WHERE review_id = ?`,
		string(status), time.Now().UTC(), reviewID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", reviewID)
	}
	return checkRowsAffected(res, "review", reviewID)
}

// --- Shortlist ---

// MarkShortlist records the entry and moves the review to selected in one
// transaction.
func (s *SQLiteStore) MarkShortlist(ctx context.Context, entry model.ShortlistEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin shortlist tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE reviews SET status = ?, updated_at = ? WHERE review_id = ?`,
		string(model.ReviewStatusSelected), now, entry.ReviewID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: select review %s", entry.ReviewID)
	}
	if err := checkRowsAffected(res, "review", entry.ReviewID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, shortlistUpsertSQL(db.SQLite),
		entry.ReviewID, entry.BatchDate, entry.Score, now); err != nil {
		return eris.Wrapf(err, "sqlite: upsert shortlist %s", entry.ReviewID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit shortlist tx")
}

// ListShortlist returns the entries of one batch, or of every batch when
// batchDate is empty, highest score first.
func (s *SQLiteStore) ListShortlist(ctx context.Context, batchDate string) ([]model.ShortlistEntry, error) {
	query := `SELECT review_id, batch_date, score FROM shortlist`
	var args []any
	if batchDate != "" {
		query += ` WHERE batch_date = ?`
		args = append(args, batchDate)
	}
	query += ` ORDER BY score DESC, review_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list shortlist")
	}
	defer rows.Close()

	var entries []model.ShortlistEntry
	for rows.Next() {
		var e model.ShortlistEntry
		if err := rows.Scan(&e.ReviewID, &e.BatchDate, &e.Score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan shortlist")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list shortlist iterate")
}

// --- Ingest stats ---

func (s *SQLiteStore) RecordStat(ctx context.Context, event string, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_stats (event, count, created_at) VALUES (?, ?, ?)`,
		event, count, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record stat %s", event)
}

func (s *SQLiteStore) ListStats(ctx context.Context, limit int) ([]model.IngestStat, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event, count, created_at FROM ingest_stats ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stats")
	}
	defer rows.Close()

	var stats []model.IngestStat
	for rows.Next() {
		var st model.IngestStat
		if err := rows.Scan(&st.Event, &st.Count, &st.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: list stats iterate")
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, command string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, status, started_at) VALUES (?, ?, ?, ?)`,
		id, command, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Command:   command,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats map[string]int) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, status, stats, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			r         model.Run
			statsJSON sql.NullString
			finished  sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Command, &r.Status, &statsJSON, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if statsJSON.Valid && statsJSON.String != "" {
			if err := json.Unmarshal([]byte(statsJSON.String), &r.Stats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
			}
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

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

func scanPlace(row scannable) (*model.Place, error) {
	var p model.Place
	err := row.Scan(&p.PlaceID, &p.DataID, &p.Name, &p.Address, &p.Category,
		&p.TotalReviews, &p.LastReviewDate, &p.Provider, &p.PlaceURL)
	if err != nil {
		return nil, eris.Wrap(err, "scan place")
	}
	return &p, nil
}

// scanReview returns sql.ErrNoRows unwrapped so callers can detect a miss.
func scanReview(row scannable) (*model.Review, error) {
	var r model.Review
	err := row.Scan(&r.ReviewID, &r.PlaceID, &r.Rating, &r.Date, &r.ReviewerName,
		&r.ReviewerProfileURL, &r.Text, &r.Summary, &r.OwnerReply, &r.ReviewURL,
		&r.HumorScore, &r.HumorNotes, &r.SafetyLabel, &r.SafetyNotes, &r.Tags,
		&r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
