// Package dedup flags near-duplicate reviews by text similarity.
package dedup

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/sells-group/review-scout/internal/model"
)

// DefaultThreshold is the similarity at or above which two reviews are
// considered duplicates.
const DefaultThreshold = 0.85

// Similarity returns the gestalt pattern-matching ratio (2*M/T) of the
// lower-cased texts, in [0, 1]. It is symmetric, and two empty texts are
// identical.
func Similarity(a, b string) float64 {
	ra := strings.Split(strings.ToLower(a), "")
	rb := strings.Split(strings.ToLower(b), "")
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	// The matcher's junk heuristics and tie-breaking depend on argument
	// order, so both directions are measured.
	return max(ratio(ra, rb), ratio(rb, ra))
}

func ratio(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

// Result pairs a review with its duplicate verdict.
type Result struct {
	Review      model.Review
	IsDuplicate bool
	MatchedID   string // review id of the earlier accepted review it matched
}

// Matcher compares reviews against those accepted before them.
type Matcher struct {
	Threshold float64
}

// New returns a Matcher, using DefaultThreshold when threshold is not in (0, 1].
func New(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Mark walks reviews in order. A review is a duplicate when its similarity
// to any previously accepted review reaches the threshold; duplicates are
// never compared against. The result is parallel to reviews.
func (m *Matcher) Mark(reviews []model.Review) []Result {
	results := make([]Result, len(reviews))
	var accepted []model.Review
	for i, r := range reviews {
		results[i] = Result{Review: r}
		for _, prev := range accepted {
			if Similarity(r.Text, prev.Text) >= m.Threshold {
				results[i].IsDuplicate = true
				results[i].MatchedID = prev.ReviewID
				break
			}
		}
		if !results[i].IsDuplicate {
			accepted = append(accepted, r)
		}
	}
	return results
}

// Unique returns the non-duplicate reviews in their original order.
func (m *Matcher) Unique(reviews []model.Review) []model.Review {
	var out []model.Review
	for _, res := range m.Mark(reviews) {
		if !res.IsDuplicate {
			out = append(out, res.Review)
		}
	}
	return out
}
