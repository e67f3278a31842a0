// Package discovery finds candidate venues through the SerpApi Google Maps
// search and records them as places.
package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/review-scout/internal/config"
	"github.com/sells-group/review-scout/internal/model"
	"github.com/sells-group/review-scout/pkg/serpapi"
)

// Ingest stat events recorded for skipped results.
const (
	StatSkippedNoID      = "discovery_skipped_no_id"
	StatSkippedLowVolume = "discovery_skipped_low_volume"
	StatSkippedStale     = "discovery_skipped_stale"
)

// Store is the subset of the review store used by discovery.
type Store interface {
	UpsertPlace(ctx context.Context, p model.Place) error
	RecordStat(ctx context.Context, event string, count int) error
}

// Result summarizes one discovery run.
type Result struct {
	Places  int            `json:"places"`
	Skipped map[string]int `json:"skipped"`
}

// Driver walks every region and category pair and upserts qualifying places.
type Driver struct {
	store     Store
	serp      serpapi.Client
	limiter   *rate.Limiter
	cfg       config.DiscoveryConfig
	maxPlaces int
	now       func() time.Time
}

// NewDriver creates a Driver. Provider requests are spaced delay apart.
func NewDriver(store Store, serp serpapi.Client, cfg config.DiscoveryConfig, maxPlaces int, delay time.Duration) *Driver {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Driver{
		store:     store,
		serp:      serp,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		maxPlaces: maxPlaces,
		now:       time.Now,
	}
}

// Run discovers places until every pair is exhausted or the place cap is
// reached. The first provider or store error aborts the run; places stored
// before it stay stored.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "discovery"))
	res := &Result{Skipped: map[string]int{
		StatSkippedNoID:      0,
		StatSkippedLowVolume: 0,
		StatSkippedStale:     0,
	}}

	cutoff := d.cutoff()
	runErr := func() error {
		for _, region := range d.cfg.Regions {
			for _, category := range d.cfg.Categories {
				done, err := d.searchPair(ctx, region, category, cutoff, res)
				if err != nil {
					return err
				}
				if done {
					log.Info("place cap reached", zap.Int("places", res.Places))
					return nil
				}
			}
		}
		return nil
	}()

	for _, event := range []string{StatSkippedNoID, StatSkippedLowVolume, StatSkippedStale} {
		if n := res.Skipped[event]; n > 0 {
			if err := d.store.RecordStat(ctx, event, n); err != nil {
				log.Warn("record stat failed", zap.String("event", event), zap.Error(err))
			}
		}
	}

	if runErr != nil {
		return res, runErr
	}
	log.Info("discovery complete", zap.Int("places", res.Places), zap.Any("skipped", res.Skipped))
	return res, nil
}

// searchPair pages through one query. It reports true once the place cap
// is hit.
func (d *Driver) searchPair(ctx context.Context, region, category string, cutoff time.Time, res *Result) (bool, error) {
	query := category + " in " + region
	log := zap.L().With(zap.String("component", "discovery"), zap.String("query", query))

	maxPages := d.cfg.MaxPagesPerQuery
	if maxPages <= 0 {
		maxPages = 1
	}

	start := 0
	for page := 0; page < maxPages; page++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return false, eris.Wrap(err, "discovery: rate limit wait")
		}

		resp, err := d.serp.MapsSearch(ctx, serpapi.MapsSearchRequest{Query: query, Start: start})
		if err != nil {
			return false, eris.Wrapf(err, "discovery: search %q", query)
		}
		if len(resp.LocalResults) == 0 {
			return false, nil
		}
		log.Debug("search page", zap.Int("page", page), zap.Int("results", len(resp.LocalResults)))

		for _, raw := range resp.LocalResults {
			place, skip := d.toPlace(raw, category, cutoff)
			if skip != "" {
				res.Skipped[skip]++
				continue
			}
			if err := d.store.UpsertPlace(ctx, place); err != nil {
				return false, eris.Wrapf(err, "discovery: upsert place %s", place.PlaceID)
			}
			res.Places++
			if d.maxPlaces > 0 && res.Places >= d.maxPlaces {
				return true, nil
			}
		}

		if !resp.HasNext() {
			return false, nil
		}
		start += len(resp.LocalResults)
	}
	return false, nil
}

// cutoff is the oldest acceptable last-review date; zero disables the check.
func (d *Driver) cutoff() time.Time {
	if d.cfg.RequireRecentDays <= 0 {
		return time.Time{}
	}
	now := d.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -d.cfg.RequireRecentDays)
}

// toPlace maps one local result to a Place, or names the stat it is
// skipped under.
func (d *Driver) toPlace(raw json.RawMessage, category string, cutoff time.Time) (model.Place, string) {
	r := gjson.ParseBytes(raw)

	placeID := strings.TrimSpace(r.Get("place_id").String())
	dataID := strings.TrimSpace(r.Get("data_id").String())
	if placeID == "" && dataID == "" {
		return model.Place{}, StatSkippedNoID
	}

	total := int(r.Get("reviews").Int())
	if total < d.cfg.MinTotalReviews {
		return model.Place{}, StatSkippedLowVolume
	}

	lastSeen := firstString(r, "reviewed_at", "last_review_date")
	if lastSeen != "" && !cutoff.IsZero() {
		if t, ok := parseDate(lastSeen); ok && t.Before(cutoff) {
			return model.Place{}, StatSkippedStale
		}
	}

	if placeID == "" {
		placeID = dataID
	}
	name := firstString(r, "title", "name")
	if name == "" {
		name = "Unknown"
	}
	p := model.Place{
		PlaceID:        placeID,
		DataID:         dataID,
		Name:           name,
		Address:        firstString(r, "address", "formatted_address"),
		Category:       category,
		TotalReviews:   total,
		LastReviewDate: lastSeen,
		Provider:       model.ProviderSerpAPI,
		PlaceURL:       firstString(r, "link", "place_link"),
	}
	if p.PlaceURL == "" && r.Get("place_id").String() != "" {
		p.PlaceURL = p.MapsURL()
	}
	return p, ""
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := strings.TrimSpace(r.Get(p).String()); v != "" {
			return v
		}
	}
	return ""
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, dd := t.Date()
			return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
