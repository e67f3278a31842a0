package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/review-scout/internal/collect"
	"github.com/sells-group/review-scout/internal/curate"
	"github.com/sells-group/review-scout/internal/discovery"
	"github.com/sells-group/review-scout/internal/metrics"
	"github.com/sells-group/review-scout/internal/model"
	"github.com/sells-group/review-scout/internal/report"
	"github.com/sells-group/review-scout/internal/store"
)

// ShortlistOptions controls a shortlist run.
type ShortlistOptions struct {
	// DryRun writes the reports without marking reviews as selected.
	DryRun bool
	// ScreenshotDir holds pre-captured review screenshots to embed in the
	// HTML report.
	ScreenshotDir string
}

// ShortlistResult describes one shortlist run.
type ShortlistResult struct {
	BatchDate   string
	Candidates  int
	Selected    []model.Review
	ThemeCounts map[string]int
	Skipped     map[string]int
	Paths       []string
	DryRun      bool
}

// WeeklyResult describes a full weekly run.
type WeeklyResult struct {
	Discovered int
	Collected  int
	Shortlist  *ShortlistResult
}

// Discover finds places and returns how many were stored.
func (p *Pipeline) Discover(ctx context.Context) (int, error) {
	var n int
	err := p.track(ctx, CommandDiscover, func(ctx context.Context) (map[string]int, error) {
		res, err := p.discover(ctx)
		if res != nil {
			n = res.Places
		}
		return discoverStats(res), err
	})
	return n, err
}

// Collect harvests reviews and returns how many were stored.
func (p *Pipeline) Collect(ctx context.Context) (int, error) {
	var n int
	err := p.track(ctx, CommandCollect, func(ctx context.Context) (map[string]int, error) {
		res, err := p.collect(ctx)
		if res != nil {
			n = res.Stored
		}
		return collectStats(res), err
	})
	return n, err
}

// Shortlist selects this week's reviews and writes the reports.
func (p *Pipeline) Shortlist(ctx context.Context, opts ShortlistOptions) (*ShortlistResult, error) {
	var out *ShortlistResult
	err := p.track(ctx, CommandShortlist, func(ctx context.Context) (map[string]int, error) {
		res, err := p.shortlist(ctx, opts)
		out = res
		return shortlistStats(res), err
	})
	return out, err
}

// Weekly runs discovery, collection and shortlisting in sequence. The first
// failing stage stops the run.
func (p *Pipeline) Weekly(ctx context.Context) (*WeeklyResult, error) {
	out := &WeeklyResult{}
	err := p.track(ctx, CommandWeekly, func(ctx context.Context) (map[string]int, error) {
		stats := make(map[string]int)

		dres, err := p.discover(ctx)
		mergeStats(stats, discoverStats(dres))
		if err != nil {
			return stats, err
		}
		out.Discovered = dres.Places

		cres, err := p.collect(ctx)
		mergeStats(stats, collectStats(cres))
		if err != nil {
			return stats, err
		}
		out.Collected = cres.Stored

		sres, err := p.shortlist(ctx, ShortlistOptions{})
		mergeStats(stats, shortlistStats(sres))
		out.Shortlist = sres
		return stats, err
	})
	return out, err
}

// AddPlace stores a manual placeholder place whose reviews are collected
// on the next run.
func (p *Pipeline) AddPlace(ctx context.Context, placeID string) error {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return eris.New("pipeline: place id is required")
	}
	return p.track(ctx, CommandAddPlace, func(ctx context.Context) (map[string]int, error) {
		err := p.store.UpsertPlace(ctx, model.Place{
			PlaceID:  placeID,
			DataID:   placeID,
			Name:     "Manual",
			Category: "manual",
			Provider: model.ProviderSerpAPI,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: add place %s", placeID)
		}
		return map[string]int{"places": 1}, nil
	})
}

// SetStatus moves a review to another lifecycle state.
func (p *Pipeline) SetStatus(ctx context.Context, reviewID string, status model.ReviewStatus) error {
	return p.track(ctx, CommandSetStatus, func(ctx context.Context) (map[string]int, error) {
		if err := p.store.UpdateStatus(ctx, reviewID, status); err != nil {
			return nil, eris.Wrapf(err, "pipeline: set status of %s", reviewID)
		}
		return map[string]int{"updated": 1}, nil
	})
}

// Candidates lists the reviews the next shortlist would choose from.
func (p *Pipeline) Candidates(ctx context.Context, limit int) ([]model.Review, error) {
	reviews, err := p.store.FetchCandidates(ctx, p.candidateFilter(limit))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch candidates")
	}
	return reviews, nil
}

func (p *Pipeline) candidateFilter(limit int) store.CandidateFilter {
	return store.CandidateFilter{
		MinScore:    p.cfg.App.HumorThreshold,
		AllowRepeat: p.cfg.App.AllowRepeatSuggestions,
		Limit:       limit,
	}
}

func (p *Pipeline) discover(ctx context.Context) (*discovery.Result, error) {
	if err := p.requireProviders(false); err != nil {
		return nil, err
	}
	d := discovery.NewDriver(p.store, p.serp, p.cfg.Discovery, p.cfg.App.MaxPlacesPerRun,
		time.Duration(p.cfg.SerpAPI.DiscoveryDelayMs)*time.Millisecond)
	res, err := d.Run(ctx)
	if res != nil {
		p.metrics.PlacesDiscovered.Add(float64(res.Places))
		metrics.AddCounts(p.metrics.PlacesSkipped, res.Skipped)
	}
	return res, err
}

func (p *Pipeline) collect(ctx context.Context) (*collect.Result, error) {
	if err := p.requireProviders(true); err != nil {
		return nil, err
	}
	d := collect.NewDriver(p.store, p.serp, p.scorer, p.safety,
		collect.Limits{PerPlace: p.cfg.App.MaxReviewsPerPlace, PerRun: p.cfg.App.MaxReviewsPerRun},
		time.Duration(p.cfg.SerpAPI.ReviewDelayMs)*time.Millisecond)
	res, err := d.Run(ctx)
	if res != nil {
		p.metrics.ReviewsStored.Add(float64(res.Stored))
		p.metrics.LLMErrors.Add(float64(res.LLMErrors))
		metrics.AddCounts(p.metrics.ReviewsSkipped, res.Skipped)
	}
	return res, err
}

func (p *Pipeline) shortlist(ctx context.Context, opts ShortlistOptions) (*ShortlistResult, error) {
	log := zap.L().With(zap.String("component", "shortlist"))
	now := p.now()

	candidates, err := p.store.FetchCandidates(ctx, p.candidateFilter(0))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch candidates")
	}

	sel := curate.NewSelector(p.cfg.App.WeeklyTargetCount, p.cfg.Curation).Select(candidates)
	res := &ShortlistResult{
		BatchDate:   now.Format("2006-01-02"),
		Candidates:  len(candidates),
		Selected:    sel.Reviews,
		ThemeCounts: sel.ThemeCounts,
		Skipped:     sel.CountByReason(),
		DryRun:      opts.DryRun,
	}
	for _, sk := range sel.Skipped {
		log.Debug("candidate skipped",
			zap.String("review_id", sk.Review.ReviewID),
			zap.String("reason", sk.Reason),
			zap.String("matched_id", sk.MatchedID),
		)
	}
	metrics.AddCounts(p.metrics.ShortlistSkipped, res.Skipped)

	places, err := p.store.PlaceMap(ctx)
	if err != nil {
		return res, eris.Wrap(err, "pipeline: load places")
	}

	batch := report.NewBatch(sel.Reviews, places, now)
	batch.Screenshots = report.FindScreenshots(opts.ScreenshotDir, sel.Reviews)
	res.Paths, err = report.Write(ctx, p.cfg.App.OutputDir, p.cfg.Report.Formats, batch)
	if err != nil {
		return res, err
	}

	if opts.DryRun {
		log.Info("dry run: shortlist not recorded", zap.Int("selected", len(sel.Reviews)))
		return res, nil
	}

	for _, r := range sel.Reviews {
		entry := model.ShortlistEntry{ReviewID: r.ReviewID, BatchDate: res.BatchDate, Score: r.HumorScore}
		if err := p.store.MarkShortlist(ctx, entry); err != nil {
			return res, eris.Wrapf(err, "pipeline: mark %s", r.ReviewID)
		}
	}
	p.metrics.Shortlisted.Add(float64(len(sel.Reviews)))
	log.Info("shortlist recorded", zap.String("batch_date", res.BatchDate), zap.Int("selected", len(sel.Reviews)))
	return res, nil
}

func discoverStats(res *discovery.Result) map[string]int {
	if res == nil {
		return nil
	}
	stats := map[string]int{"places": res.Places}
	mergeStats(stats, res.Skipped)
	return stats
}

func collectStats(res *collect.Result) map[string]int {
	if res == nil {
		return nil
	}
	stats := map[string]int{"reviews": res.Stored, "llm_errors": res.LLMErrors}
	mergeStats(stats, res.Skipped)
	return stats
}

func shortlistStats(res *ShortlistResult) map[string]int {
	if res == nil {
		return nil
	}
	stats := map[string]int{"candidates": res.Candidates, "selected": len(res.Selected)}
	for reason, n := range res.Skipped {
		stats["shortlist_skipped_"+reason] = n
	}
	return stats
}

func mergeStats(dst, src map[string]int) {
	for k, v := range src {
		dst[k] += v
	}
}
