package store

import (
	"context"

	"github.com/sells-group/review-scout/internal/db"
	"github.com/sells-group/review-scout/internal/model"
)

// CandidateFilter specifies which reviews are eligible for a shortlist.
type CandidateFilter struct {
	MinScore    int  `json:"min_score"`
	AllowRepeat bool `json:"allow_repeat"`
	Limit       int  `json:"limit,omitempty"` // 0 = no limit
}

// Store defines the persistence interface for places, reviews and their
// shortlist lifecycle. Reviews are never deleted.
type Store interface {
	// Places
	UpsertPlace(ctx context.Context, p model.Place) error
	ListPlaceLookupIDs(ctx context.Context) ([]string, error)
	PlaceMap(ctx context.Context) (map[string]model.Place, error)

	// Reviews
	UpsertReview(ctx context.Context, r model.Review) error
	GetReview(ctx context.Context, reviewID string) (*model.Review, error)
	FetchCandidates(ctx context.Context, filter CandidateFilter) ([]model.Review, error)
	UpdateStatus(ctx context.Context, reviewID string, status model.ReviewStatus) error

	// Shortlist
	MarkShortlist(ctx context.Context, entry model.ShortlistEntry) error
	ListShortlist(ctx context.Context, batchDate string) ([]model.ShortlistEntry, error)

	// Ingest stats
	RecordStat(ctx context.Context, event string, count int) error
	ListStats(ctx context.Context, limit int) ([]model.IngestStat, error)

	// Runs
	CreateRun(ctx context.Context, command string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats map[string]int) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// additiveColumns are optional columns added to existing databases that
// predate them. Each is added only when missing.
var additiveColumns = []struct {
	Table  string
	Column string
	DDL    string
}{
	{"places", "data_id", "TEXT NOT NULL DEFAULT ''"},
	{"places", "place_url", "TEXT NOT NULL DEFAULT ''"},
	{"reviews", "reviewer_profile_url", "TEXT NOT NULL DEFAULT ''"},
	{"reviews", "summary", "TEXT NOT NULL DEFAULT ''"},
}

const placeSelect = `SELECT place_id, COALESCE(data_id, ''), COALESCE(name, ''), COALESCE(address, ''),
	COALESCE(category, ''), COALESCE(total_reviews, 0), COALESCE(last_review_date, ''),
	COALESCE(provider, ''), COALESCE(place_url, '') FROM places`

const reviewSelect = `SELECT review_id, place_id, COALESCE(rating, 0), COALESCE(date, ''),
	COALESCE(reviewer_name, ''), COALESCE(reviewer_profile_url, ''), COALESCE(text, ''),
	COALESCE(summary, ''), COALESCE(owner_reply, ''), COALESCE(review_url, ''),
	COALESCE(humor_score, 0), COALESCE(humor_notes, ''), COALESCE(safety_label, ''),
	COALESCE(safety_notes, ''), COALESCE(tags, ''), status, created_at, updated_at FROM reviews`

func placeUpsertSQL(d db.Dialect) string {
	return db.MustUpsertSQL(d, db.UpsertConfig{
		Table: "places",
		Columns: []string{
			"place_id", "data_id", "name", "address", "category", "total_reviews",
			"last_review_date", "provider", "place_url", "created_at", "updated_at",
		},
		ConflictKeys: []string{"place_id"},
		UpdateCols: []string{
			"name", "address", "category", "total_reviews",
			"last_review_date", "provider", "updated_at",
		},
		// A known secondary id or link is never replaced by an empty one.
		Touch: []string{
			`"data_id" = COALESCE(NULLIF(excluded."data_id", ''), places."data_id")`,
			`"place_url" = COALESCE(NULLIF(excluded."place_url", ''), places."place_url")`,
		},
	})
}

func reviewUpsertSQL(d db.Dialect) string {
	return db.MustUpsertSQL(d, db.UpsertConfig{
		Table: "reviews",
		Columns: []string{
			"review_id", "place_id", "rating", "date", "reviewer_name", "reviewer_profile_url",
			"text", "summary", "owner_reply", "review_url", "humor_score", "humor_notes",
			"safety_label", "safety_notes", "tags", "status", "created_at", "updated_at",
		},
		ConflictKeys: []string{"review_id"},
		// status and created_at survive re-harvesting.
		UpdateCols: []string{
			"place_id", "rating", "date", "reviewer_name", "reviewer_profile_url",
			"text", "summary", "owner_reply", "review_url", "humor_score", "humor_notes",
			"safety_label", "safety_notes", "tags", "updated_at",
		},
	})
}

func shortlistUpsertSQL(d db.Dialect) string {
	return db.MustUpsertSQL(d, db.UpsertConfig{
		Table:        "shortlist",
		Columns:      []string{"review_id", "batch_date", "score", "created_at"},
		ConflictKeys: []string{"review_id"},
		UpdateCols:   []string{"batch_date", "score"},
	})
}

func reviewArgs(r model.Review, status model.ReviewStatus, now any) []any {
	return []any{
		r.ReviewID, r.PlaceID, r.Rating, r.Date, r.ReviewerName, r.ReviewerProfileURL,
		r.Text, r.Summary, r.OwnerReply, r.ReviewURL, model.ClampScore(r.HumorScore), r.HumorNotes,
		string(r.SafetyLabel), r.SafetyNotes, r.Tags, string(status), now, now,
	}
}

func placeArgs(p model.Place, now any) []any {
	return []any{
		p.PlaceID, p.DataID, p.Name, p.Address, p.Category, p.TotalReviews,
		p.LastReviewDate, p.Provider, p.PlaceURL, now, now,
	}
}

// initialStatus is the status a review gets when first inserted.
func initialStatus(r model.Review) model.ReviewStatus {
	if r.Status == "" {
		return model.ReviewStatusNew
	}
	return r.Status
}

// candidateWhere returns the WHERE clause shared by both backends; ph renders
// the n-th placeholder.
func candidateWhere(f CandidateFilter, ph func(int) string) (string, []any) {
	where := `humor_score >= ` + ph(1) + ` AND status != 'discarded'`
	args := []any{f.MinScore}
	if !f.AllowRepeat {
		where += ` AND status = 'new' AND review_id NOT IN (SELECT review_id FROM shortlist)`
	}
	return where, args
}

func indexPlaces(places []model.Place) map[string]model.Place {
	m := make(map[string]model.Place, len(places)*2)
	for _, p := range places {
		m[p.PlaceID] = p
		if p.DataID != "" {
			m[p.DataID] = p
		}
	}
	return m
}
