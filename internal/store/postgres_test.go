package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-scout/internal/db"
	"github.com/sells-group/review-scout/internal/model"
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

var reviewColumns = []string{
	"review_id", "place_id", "rating", "date", "reviewer_name", "reviewer_profile_url",
	"text", "summary", "owner_reply", "review_url", "humor_score", "humor_notes",
	"safety_label", "safety_notes", "tags", "status", "created_at", "updated_at",
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS places`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for range additiveColumns {
		mock.ExpectExec(`ALTER TABLE \w+ ADD COLUMN IF NOT EXISTS`).
			WillReturnResult(pgxmock.NewResult("ALTER", 0))
	}

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertReview_KeepsStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	r := testReview("r1", 70, "rude_staff")
	mock.ExpectExec(`INSERT INTO "reviews" .* ON CONFLICT \("review_id"\) DO UPDATE SET`).
		WithArgs(
			"r1", "place-1", 1, "2026-09-01", "", "", "text of r1", "", "", "",
			70, "LLM score", "safe", "No obvious risks", "rude_staff", "new",
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertReview(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NotContains(t, reviewUpsertSQL(db.Postgres), `"status" = excluded`)
}

func TestPostgresStore_GetReview_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT review_id, .* FROM reviews WHERE review_id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetReview(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchCandidates(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(reviewColumns).
		AddRow("r2", "p1", 1, "2026-09-01", "Ana", "", "funny", "", "", "", 90, "LLM score", "safe", "No obvious risks", "absurd", "new", now, now).
		AddRow("r1", "p1", 2, "2026-09-02", "Luis", "", "meh", "", "", "", 60, "LLM score", "caution", "Sensitive topic detected", "", "new", now, now)

	mock.ExpectQuery(`humor_score >= \$1 AND status != 'discarded' AND status = 'new' AND review_id NOT IN .* ORDER BY humor_score DESC, review_id ASC LIMIT \$2`).
		WithArgs(55, 10).
		WillReturnRows(rows)

	got, err := s.FetchCandidates(context.Background(), CandidateFilter{MinScore: 55, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ReviewID)
	assert.Equal(t, model.SafetyCaution, got[1].SafetyLabel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkShortlist_Commits(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE reviews SET status = \$1`).
		WithArgs("selected", pgxmock.AnyArg(), "r1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO "shortlist"`).
		WithArgs("r1", "2026-10-17", 70, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.MarkShortlist(context.Background(), model.ShortlistEntry{ReviewID: "r1", BatchDate: "2026-10-17", Score: 70})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkShortlist_RollsBackOnMissingReview(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE reviews SET status = \$1`).
		WithArgs("selected", pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.MarkShortlist(context.Background(), model.ShortlistEntry{ReviewID: "ghost", BatchDate: "2026-10-17"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE reviews SET status = \$1, updated_at = \$2 WHERE review_id = \$3`).
		WithArgs("used", pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateStatus(context.Background(), "ghost", model.ReviewStatusUsed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PlaceMap(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"place_id", "data_id", "name", "address", "category", "total_reviews", "last_review_date", "provider", "place_url"}).
		AddRow("p1", "d1", "Bar", "Calle 1", "bar", 200, "", "serpapi", "").
		AddRow("p2", "", "Manual", "", "manual", 0, "", "serpapi", "")
	mock.ExpectQuery(`SELECT place_id, .* FROM places ORDER BY created_at ASC, place_id ASC`).
		WillReturnRows(rows)

	m, err := s.PlaceMap(context.Background())
	require.NoError(t, err)
	assert.Len(t, m, 3)
	assert.Equal(t, "Bar", m["d1"].Name)
	assert.Equal(t, "Manual", m["p2"].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordStat_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ingest_stats`).
		WithArgs("reviews_collected", 4, pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := s.RecordStat(context.Background(), "reviews_collected", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: record stat reviews_collected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, stats = \$2`).
		WithArgs("complete", []byte(`{"places_discovered":3}`), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteRun(context.Background(), "run-1", map[string]int{"places_discovered": 3}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
