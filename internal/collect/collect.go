// Package collect harvests low-star reviews for known places, scores them
// and stores them.
package collect

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/review-scout/internal/humor"
	"github.com/sells-group/review-scout/internal/model"
	"github.com/sells-group/review-scout/internal/safety"
	"github.com/sells-group/review-scout/pkg/serpapi"
)

// Ingest stat events recorded for skipped reviews.
const (
	StatSkippedHighRating = "collect_skipped_high_rating"
	StatSkippedEmpty      = "collect_skipped_empty"
)

// maxRating is the highest star rating that is kept.
const maxRating = 2

// Store is the subset of the review store used by collection.
type Store interface {
	ListPlaceLookupIDs(ctx context.Context) ([]string, error)
	UpsertReview(ctx context.Context, r model.Review) error
	RecordStat(ctx context.Context, event string, count int) error
}

// Scorer rates review humor. It never fails.
type Scorer interface {
	Score(ctx context.Context, in humor.Input) humor.Result
}

// Classifier labels review safety.
type Classifier interface {
	Assess(text, ownerReply string) safety.Result
}

// Limits caps how much a run harvests.
type Limits struct {
	PerPlace int // raw reviews fetched per place; 0 means unlimited
	PerRun   int // stored reviews per run; 0 means unlimited
}

// Result summarizes one collection run.
type Result struct {
	Stored    int            `json:"stored"`
	Places    int            `json:"places"`
	LLMErrors int            `json:"llm_errors"`
	Skipped   map[string]int `json:"skipped"`
}

// Driver pages through reviews place by place.
type Driver struct {
	store   Store
	serp    serpapi.Client
	scorer  Scorer
	safety  Classifier
	limiter *rate.Limiter
	limits  Limits
	now     func() time.Time
}

// NewDriver creates a Driver. Review page requests are spaced delay apart.
func NewDriver(store Store, serp serpapi.Client, scorer Scorer, cls Classifier, limits Limits, delay time.Duration) *Driver {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Driver{
		store:   store,
		serp:    serp,
		scorer:  scorer,
		safety:  cls,
		limiter: rate.NewLimiter(limit, 1),
		limits:  limits,
		now:     time.Now,
	}
}

// Run collects reviews for every stored place. A provider error aborts the
// run; reviews stored before it stay stored.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "collect"))
	res := &Result{Skipped: map[string]int{StatSkippedHighRating: 0, StatSkippedEmpty: 0}}

	ids, err := d.store.ListPlaceLookupIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "collect: list places")
	}
	log.Info("collecting reviews", zap.Int("places", len(ids)))

	runErr := func() error {
		for _, id := range ids {
			if d.runCapReached(res) {
				log.Info("review cap reached", zap.Int("stored", res.Stored))
				return nil
			}
			if err := d.collectPlace(ctx, id, res); err != nil {
				return err
			}
			res.Places++
		}
		return nil
	}()

	for _, event := range []string{StatSkippedHighRating, StatSkippedEmpty} {
		if n := res.Skipped[event]; n > 0 {
			if err := d.store.RecordStat(ctx, event, n); err != nil {
				log.Warn("record stat failed", zap.String("event", event), zap.Error(err))
			}
		}
	}

	if runErr != nil {
		return res, runErr
	}
	log.Info("collection complete",
		zap.Int("stored", res.Stored),
		zap.Int("llm_errors", res.LLMErrors),
		zap.Any("skipped", res.Skipped),
	)
	return res, nil
}

func (d *Driver) runCapReached(res *Result) bool {
	return d.limits.PerRun > 0 && res.Stored >= d.limits.PerRun
}

func (d *Driver) placeCapReached(fetched int) bool {
	return d.limits.PerPlace > 0 && fetched >= d.limits.PerPlace
}

func (d *Driver) collectPlace(ctx context.Context, placeID string, res *Result) error {
	log := zap.L().With(zap.String("component", "collect"), zap.String("place_id", placeID))

	// fetched counts every raw review the provider returned, so pages of
	// high-star reviews still use up the place's budget.
	fetched, stored := 0, 0
	token := ""
	for !d.placeCapReached(fetched) {
		if err := d.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "collect: rate limit wait")
		}

		resp, err := d.serp.MapsReviews(ctx, serpapi.MapsReviewsRequest{DataID: placeID, NextPageToken: token})
		if err != nil {
			return eris.Wrapf(err, "collect: reviews for %s", placeID)
		}
		if len(resp.Reviews) == 0 {
			break
		}

		placeURL := resp.PlaceURL()
		for _, raw := range resp.Reviews {
			if d.placeCapReached(fetched) {
				break
			}
			if d.runCapReached(res) {
				return nil
			}
			fetched++

			rv := Normalize(raw, placeID, placeURL, d.now())
			if rv.Rating > maxRating {
				res.Skipped[StatSkippedHighRating]++
				continue
			}
			if rv.Text == "" {
				res.Skipped[StatSkippedEmpty]++
				continue
			}

			review, llmFailed := d.annotate(ctx, rv)
			if llmFailed {
				res.LLMErrors++
			}
			if err := d.store.UpsertReview(ctx, review); err != nil {
				return eris.Wrapf(err, "collect: upsert review %s", review.ReviewID)
			}
			stored++
			res.Stored++
		}

		token = resp.Pagination.NextPageToken
		if token == "" {
			break
		}
	}

	log.Debug("place collected", zap.Int("fetched", fetched), zap.Int("stored", stored))
	return nil
}

// annotate scores and classifies a review. It reports whether the humor
// oracle failed.
func (d *Driver) annotate(ctx context.Context, rv Raw) (model.Review, bool) {
	h := d.scorer.Score(ctx, humor.Input{Text: rv.Text, OwnerReply: rv.OwnerReply, Rating: rv.Rating})
	s := d.safety.Assess(rv.Text, rv.OwnerReply)

	return model.Review{
		ReviewID:           rv.ReviewID,
		PlaceID:            rv.PlaceID,
		Rating:             rv.Rating,
		Date:               rv.Date,
		ReviewerName:       rv.ReviewerName,
		ReviewerProfileURL: rv.ReviewerProfileURL,
		Text:               rv.Text,
		OwnerReply:         rv.OwnerReply,
		ReviewURL:          rv.ReviewURL,
		HumorScore:         model.ClampScore(h.Score),
		HumorNotes:         h.Notes,
		SafetyLabel:        s.Label,
		SafetyNotes:        s.Notes,
		Tags:               model.JoinTags(h.Tags),
		Status:             model.ReviewStatusNew,
	}, h.Failed()
}
