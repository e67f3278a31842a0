package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ReviewStatus is the lifecycle state of a review.
type ReviewStatus string

const (
	ReviewStatusNew       ReviewStatus = "new"
	ReviewStatusSelected  ReviewStatus = "selected"
	ReviewStatusUsed      ReviewStatus = "used"
	ReviewStatusDiscarded ReviewStatus = "discarded"
)

// ReviewStatuses lists every valid status in lifecycle order.
var ReviewStatuses = []ReviewStatus{
	ReviewStatusNew,
	ReviewStatusSelected,
	ReviewStatusUsed,
	ReviewStatusDiscarded,
}

// ParseReviewStatus validates a status string.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	st := ReviewStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range ReviewStatuses {
		if st == valid {
			return st, nil
		}
	}
	return "", eris.Errorf("invalid review status %q (want new, selected, used or discarded)", s)
}

// SafetyLabel is the publication risk assigned by the safety classifier.
type SafetyLabel string

const (
	SafetySafe           SafetyLabel = "safe"
	SafetyCaution        SafetyLabel = "caution"
	SafetyNotRecommended SafetyLabel = "not_recommended"
)

// Description returns a human-readable form of the label.
func (l SafetyLabel) Description() string {
	switch l {
	case SafetySafe:
		return "Safe to use"
	case SafetyCaution:
		return "Use with caution"
	case SafetyNotRecommended:
		return "Not recommended"
	default:
		return string(l)
	}
}

// DefaultTheme is the theme of a review without tags.
const DefaultTheme = "misc"

// Review is a single harvested, annotated review.
type Review struct {
	ReviewID           string       `json:"review_id"`
	PlaceID            string       `json:"place_id"`
	Rating             int          `json:"rating"`
	Date               string       `json:"date"`
	ReviewerName       string       `json:"reviewer_name"`
	ReviewerProfileURL string       `json:"reviewer_profile_url,omitempty"`
	Text               string       `json:"text"`
	Summary            string       `json:"summary,omitempty"`
	OwnerReply         string       `json:"owner_reply,omitempty"`
	ReviewURL          string       `json:"review_url"`
	HumorScore         int          `json:"humor_score"`
	HumorNotes         string       `json:"humor_notes"`
	SafetyLabel        SafetyLabel  `json:"safety_label"`
	SafetyNotes        string       `json:"safety_notes"`
	Tags               string       `json:"tags"`
	Status             ReviewStatus `json:"status"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// TagList splits the comma-joined tag column, dropping blanks.
func (r Review) TagList() []string {
	var tags []string
	for _, t := range strings.Split(r.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Theme is the primary tag used for quota accounting, lower-cased so that
// tags differing only in case share one quota.
func (r Review) Theme() string {
	if tags := r.TagList(); len(tags) > 0 {
		return strings.ToLower(tags[0])
	}
	return DefaultTheme
}

// JoinTags renders a tag list in the stored comma-joined form.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// DeriveReviewID builds the stable identifier of a review so that
// re-harvesting the same review maps onto the same row.
func DeriveReviewID(placeID, urlOrDate, reviewer string) string {
	if reviewer == "" {
		reviewer = "anon"
	}
	return placeID + ":" + urlOrDate + ":" + reviewer
}

// ClampScore bounds a humor score to [0, 100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ShortlistEntry records that a review was selected into a batch.
type ShortlistEntry struct {
	ReviewID  string `json:"review_id"`
	BatchDate string `json:"batch_date"`
	Score     int    `json:"score"`
}
