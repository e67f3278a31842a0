// Package cost prices Anthropic usage of the scoring oracle.
package cost

import (
	"sync"

	"github.com/sells-group/review-scout/pkg/anthropic"
)

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input        float64 `yaml:"input" mapstructure:"input"`
	Output       float64 `yaml:"output" mapstructure:"output"`
	CacheReadMul float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates map[string]ModelRate
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates map[string]ModelRate) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one call. Unknown models cost nothing.
func (c *Calculator) Claude(model string, u anthropic.TokenUsage) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}
	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	crCost := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + crCost
}

// DefaultRates returns the default pricing rates.
func DefaultRates() map[string]ModelRate {
	return map[string]ModelRate{
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00, CacheReadMul: 0.1},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheReadMul: 0.1},
	}
}

// Usage is the accumulated consumption of a run.
type Usage struct {
	Calls           int
	InputTokens     int64
	OutputTokens    int64
	CacheReadTokens int64
	USD             float64
}

// Tracker accumulates usage across concurrent calls.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	total Usage
}

// NewTracker creates a Tracker priced by calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// Add records one completed call.
func (t *Tracker) Add(model string, u anthropic.TokenUsage) {
	usd := t.calc.Claude(model, u)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.Calls++
	t.total.InputTokens += u.InputTokens
	t.total.OutputTokens += u.OutputTokens
	t.total.CacheReadTokens += u.CacheReadInputTokens
	t.total.USD += usd
}

// Totals returns a snapshot of the accumulated usage.
func (t *Tracker) Totals() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
