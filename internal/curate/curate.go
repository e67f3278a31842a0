// Package curate selects the weekly shortlist from scored candidates.
package curate

import (
	"github.com/sells-group/review-scout/internal/config"
	"github.com/sells-group/review-scout/internal/dedup"
	"github.com/sells-group/review-scout/internal/model"
)

// Skip reasons.
const (
	ReasonDuplicate = "duplicate"
	ReasonQuota     = "quota"
)

// Skip records a candidate that was not selected.
type Skip struct {
	Review    model.Review
	Reason    string
	MatchedID string // set for duplicates
}

// Selection is the outcome of a single selection pass.
type Selection struct {
	Reviews     []model.Review
	ThemeCounts map[string]int
	Skipped     []Skip
}

// Selector picks at most WeeklyTarget reviews, honoring per-theme quotas.
type Selector struct {
	WeeklyTarget int
	Curation     config.CurationConfig
	Matcher      *dedup.Matcher
}

// NewSelector builds a Selector from configuration.
func NewSelector(weeklyTarget int, cur config.CurationConfig) *Selector {
	return &Selector{
		WeeklyTarget: weeklyTarget,
		Curation:     cur,
		Matcher:      dedup.New(cur.SimilarityThreshold),
	}
}

// Select walks candidates in the given order, which callers keep
// score-descending. Duplicates are dropped first; the remaining reviews are
// taken greedily while their theme is under quota, stopping at the target.
func (s *Selector) Select(candidates []model.Review) Selection {
	sel := Selection{ThemeCounts: make(map[string]int)}
	if s.WeeklyTarget <= 0 {
		return sel
	}

	matcher := s.Matcher
	if matcher == nil {
		matcher = dedup.New(s.Curation.SimilarityThreshold)
	}

	for _, res := range matcher.Mark(candidates) {
		if len(sel.Reviews) >= s.WeeklyTarget {
			break
		}
		if res.IsDuplicate {
			sel.Skipped = append(sel.Skipped, Skip{Review: res.Review, Reason: ReasonDuplicate, MatchedID: res.MatchedID})
			continue
		}
		theme := res.Review.Theme()
		if sel.ThemeCounts[theme] >= s.Curation.ThemeLimit(theme, s.WeeklyTarget) {
			sel.Skipped = append(sel.Skipped, Skip{Review: res.Review, Reason: ReasonQuota})
			continue
		}
		sel.Reviews = append(sel.Reviews, res.Review)
		sel.ThemeCounts[theme]++
	}
	return sel
}

// CountByReason tallies skipped candidates per reason.
func (sel Selection) CountByReason() map[string]int {
	counts := make(map[string]int)
	for _, sk := range sel.Skipped {
		counts[sk.Reason]++
	}
	return counts
}
