// Package pipeline runs the review-scout operations against a store and
// records each invocation in the run log.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/review-scout/internal/collect"
	"github.com/sells-group/review-scout/internal/config"
	"github.com/sells-group/review-scout/internal/metrics"
	"github.com/sells-group/review-scout/internal/store"
	"github.com/sells-group/review-scout/pkg/serpapi"
)

// Command names recorded in the run log.
const (
	CommandDiscover  = "discover"
	CommandCollect   = "collect"
	CommandShortlist = "shortlist"
	CommandWeekly    = "weekly"
	CommandAddPlace  = "add-place"
	CommandSetStatus = "set-status"
)

// Deps are the collaborators of a Pipeline. Only Store is required;
// operations that need a missing collaborator fail.
type Deps struct {
	Store   store.Store
	SerpAPI serpapi.Client
	Scorer  collect.Scorer
	Safety  collect.Classifier
	Metrics *metrics.Metrics
}

// Pipeline orchestrates discovery, collection and shortlisting.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	serp    serpapi.Client
	scorer  collect.Scorer
	safety  collect.Classifier
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{
		cfg:     cfg,
		store:   deps.Store,
		serp:    deps.SerpAPI,
		scorer:  deps.Scorer,
		safety:  deps.Safety,
		metrics: m,
		now:     time.Now,
	}
}

// Metrics returns the collectors updated by the pipeline.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// track wraps an operation in a run-log record and observes its outcome.
func (p *Pipeline) track(ctx context.Context, command string, fn func(ctx context.Context) (map[string]int, error)) error {
	log := zap.L().With(zap.String("command", command))

	run, err := p.store.CreateRun(ctx, command)
	if err != nil {
		return eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting")

	start := time.Now()
	stats, fnErr := fn(ctx)
	dur := time.Since(start)
	p.metrics.ObserveRun(command, fnErr, dur)

	// The run log is written even when ctx was canceled mid-operation.
	logCtx := context.WithoutCancel(ctx)
	if fnErr != nil {
		if err := p.store.FailRun(logCtx, run.ID, fnErr.Error()); err != nil {
			log.Warn("pipeline: fail run", zap.Error(err))
		}
		log.Error("pipeline: failed", zap.Duration("duration", dur), zap.Error(fnErr))
		return fnErr
	}

	if err := p.store.CompleteRun(logCtx, run.ID, stats); err != nil {
		log.Warn("pipeline: complete run", zap.Error(err))
	}
	log.Info("pipeline: complete", zap.Duration("duration", dur), zap.Any("stats", stats))
	return nil
}

func (p *Pipeline) requireProviders(needScoring bool) error {
	if p.serp == nil {
		return eris.New("pipeline: serpapi client not configured")
	}
	if needScoring && (p.scorer == nil || p.safety == nil) {
		return eris.New("pipeline: scorer and safety classifier not configured")
	}
	return nil
}
