package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/review-scout/internal/cost"
	"github.com/sells-group/review-scout/internal/humor"
	"github.com/sells-group/review-scout/internal/pipeline"
	"github.com/sells-group/review-scout/internal/resilience"
	"github.com/sells-group/review-scout/internal/safety"
	"github.com/sells-group/review-scout/internal/store"
	"github.com/sells-group/review-scout/pkg/anthropic"
	"github.com/sells-group/review-scout/pkg/serpapi"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
				return nil, eris.Wrap(err, "create data dir")
			}
			dsn = filepath.Join(cfg.App.DataDir, "reviews.db")
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initSerpAPI() serpapi.Client {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.SerpAPI.Retries

	return serpapi.NewClient(cfg.SerpAPI.Key,
		serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
		serpapi.WithLocale(cfg.SerpAPI.HL, cfg.SerpAPI.GL),
		serpapi.WithRetry(retry),
		serpapi.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.SerpAPI.TimeoutSecs) * time.Second}),
	)
}

func initScorer(usage *cost.Tracker) *humor.Scorer {
	ai := anthropic.NewClient(cfg.Anthropic.Key, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
	return humor.NewScorer(ai, cfg.Scoring, cfg.Anthropic.Key, humor.WithUsageTracker(usage))
}

// session is a pipeline with its open store and scoring usage.
type session struct {
	*pipeline.Pipeline
	store store.Store
	usage *cost.Tracker
}

// newSession opens the store and wires the providers the given operation
// needs.
func newSession(ctx context.Context, needSerp, needScoring bool) (*session, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{store: st}
	deps := pipeline.Deps{Store: st}
	if needSerp {
		deps.SerpAPI = initSerpAPI()
	}
	if needScoring {
		cls, err := safety.FromConfig(cfg.Safety)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		s.usage = cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))
		deps.Scorer = initScorer(s.usage)
		deps.Safety = cls
	}

	s.Pipeline = pipeline.New(cfg, deps)
	return s, nil
}

// Close reports scoring usage and closes the store.
func (s *session) Close() error {
	if s.usage != nil {
		u := s.usage.Totals()
		s.Metrics().ObserveUsage(u)
		zap.L().Info("scoring usage",
			zap.Int("calls", u.Calls),
			zap.Int64("input_tokens", u.InputTokens),
			zap.Int64("output_tokens", u.OutputTokens),
			zap.Int64("cache_read_tokens", u.CacheReadTokens),
			zap.Float64("estimated_usd", u.USD),
		)
	}
	return s.store.Close()
}
