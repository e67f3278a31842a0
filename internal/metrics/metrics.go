// Package metrics keeps per-process pipeline counters and exports them in
// the Prometheus text format.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/review-scout/internal/cost"
)

const namespace = "review_scout"

// Metrics holds the pipeline collectors in a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Runs             *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	PlacesDiscovered prometheus.Counter
	PlacesSkipped    *prometheus.CounterVec
	ReviewsStored    prometheus.Counter
	ReviewsSkipped   *prometheus.CounterVec
	LLMErrors        prometheus.Counter
	Shortlisted      prometheus.Counter
	ShortlistSkipped *prometheus.CounterVec
	LLMTokens        *prometheus.CounterVec
	LLMCostUSD       prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "runs_total", Help: "Pipeline operations by command and outcome."},
			[]string{"command", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Name: "run_duration_seconds",
				Help:    "Pipeline operation duration seconds.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"command"},
		),
		PlacesDiscovered: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "places_discovered_total", Help: "Places upserted by discovery."},
		),
		PlacesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "places_skipped_total", Help: "Discovery results skipped."},
			[]string{"reason"},
		),
		ReviewsStored: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "reviews_stored_total", Help: "Reviews scored and upserted."},
		),
		ReviewsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "reviews_skipped_total", Help: "Reviews dropped before scoring."},
			[]string{"reason"},
		),
		LLMErrors: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "llm_errors_total", Help: "Reviews whose humor scoring failed."},
		),
		Shortlisted: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "shortlisted_total", Help: "Reviews selected into a shortlist."},
		),
		ShortlistSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "shortlist_skipped_total", Help: "Candidates not selected."},
			[]string{"reason"}, // duplicate|quota
		),
		LLMTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "llm_tokens_total", Help: "Scoring tokens by kind."},
			[]string{"kind"}, // input|output|cache_read
		),
		LLMCostUSD: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "llm_cost_usd_total", Help: "Estimated scoring spend in USD."},
		),
	}
	m.reg.MustRegister(
		m.Runs, m.RunDuration, m.PlacesDiscovered, m.PlacesSkipped,
		m.ReviewsStored, m.ReviewsSkipped, m.LLMErrors, m.Shortlisted, m.ShortlistSkipped,
		m.LLMTokens, m.LLMCostUSD,
	)
	return m
}

// Registry returns the registry all collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveRun counts a finished operation.
func (m *Metrics) ObserveRun(command string, err error, dur time.Duration) {
	status := "complete"
	if err != nil {
		status = "failed"
	}
	m.Runs.WithLabelValues(command, status).Inc()
	m.RunDuration.WithLabelValues(command).Observe(dur.Seconds())
}

// ObserveUsage adds scoring token usage and its estimated cost.
func (m *Metrics) ObserveUsage(u cost.Usage) {
	m.LLMTokens.WithLabelValues("input").Add(float64(u.InputTokens))
	m.LLMTokens.WithLabelValues("output").Add(float64(u.OutputTokens))
	m.LLMTokens.WithLabelValues("cache_read").Add(float64(u.CacheReadTokens))
	m.LLMCostUSD.Add(u.USD)
}

// AddCounts adds a reason to count map to vec.
func AddCounts(vec *prometheus.CounterVec, counts map[string]int) {
	for reason, n := range counts {
		if n > 0 {
			vec.WithLabelValues(reason).Add(float64(n))
		}
	}
}

// WriteTextfile writes all metrics to path in the text exposition format,
// for a node-exporter textfile collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "metrics: create dir for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
