// Package safety labels reviews by publication risk using keyword and
// pattern rules.
package safety

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/review-scout/internal/model"
)

// Notes emitted by the classifier.
const (
	NotePersonalData = "Possible personal data"
	NoteSensitive    = "Sensitive topic detected"
	NoteAccusation   = "Criminal accusation language"
	NoteMinors       = "Mentions minors"
	NoteNoRisk       = "No obvious risks"
)

// minorTerms always mark a review not recommended.
var minorTerms = []string{"child", "minor"}

// Result is the verdict for one review.
type Result struct {
	Label model.SafetyLabel
	Notes string
}

// Classifier applies a Lexicon to review text. It is safe for concurrent use.
type Classifier struct {
	pii        []*regexp.Regexp
	sensitive  []string
	accusation []string
}

// New compiles the lexicon. PII patterns are matched case-insensitively;
// an invalid pattern is an error.
func New(lex Lexicon) (*Classifier, error) {
	c := &Classifier{
		sensitive:  foldAll(lex.SensitiveKeywords),
		accusation: foldAll(lex.AccusationKeywords),
	}
	for _, p := range lex.PIIPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, eris.Wrapf(err, "safety: compile pii pattern %q", p)
		}
		c.pii = append(c.pii, re)
	}
	return c, nil
}

// Assess labels the review text together with the owner reply. Rules are
// checked in a fixed order; each adds a note, and a mention of minors
// overrides every other label.
func (c *Classifier) Assess(text, ownerReply string) Result {
	combined := cases.Fold().String(text + " " + ownerReply)

	label := model.SafetySafe
	var notes []string

	for _, re := range c.pii {
		if re.MatchString(combined) {
			notes = append(notes, NotePersonalData)
			label = model.SafetyCaution
			break
		}
	}
	if containsAny(combined, c.sensitive) {
		notes = append(notes, NoteSensitive)
		label = model.SafetyCaution
	}
	if containsAny(combined, c.accusation) {
		notes = append(notes, NoteAccusation)
		label = model.SafetyCaution
	}
	if containsAny(combined, minorTerms) {
		notes = append(notes, NoteMinors)
		label = model.SafetyNotRecommended
	}

	if len(notes) == 0 {
		return Result{Label: label, Notes: NoteNoRisk}
	}
	return Result{Label: label, Notes: strings.Join(notes, "; ")}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, cases.Fold().String(w))
		}
	}
	return out
}
