package safety

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/review-scout/internal/config"
)

// Lexicon holds the keyword sets of the classifier.
type Lexicon struct {
	PIIPatterns        []string `yaml:"pii_patterns"`
	SensitiveKeywords  []string `yaml:"sensitive_keywords"`
	AccusationKeywords []string `yaml:"accusation_keywords"`
}

// lexiconFile is the top-level wrapper for lexicon YAML files.
type lexiconFile struct {
	Safety Lexicon `yaml:"safety"`
}

// LoadLexicon reads a YAML lexicon file with a top-level "safety" key.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, eris.Wrapf(err, "safety: read lexicon %s", path)
	}
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Lexicon{}, eris.Wrapf(err, "safety: parse lexicon %s", path)
	}
	return f.Safety, nil
}

// Merge returns the union of both lexicons, keeping first-seen order.
func (l Lexicon) Merge(other Lexicon) Lexicon {
	return Lexicon{
		PIIPatterns:        union(l.PIIPatterns, other.PIIPatterns),
		SensitiveKeywords:  union(l.SensitiveKeywords, other.SensitiveKeywords),
		AccusationKeywords: union(l.AccusationKeywords, other.AccusationKeywords),
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// FromConfig builds a Classifier from the configured keyword sets, merged
// with the lexicon file when one is configured.
func FromConfig(cfg config.SafetyConfig) (*Classifier, error) {
	lex := Lexicon{
		PIIPatterns:        cfg.PIIPatterns,
		SensitiveKeywords:  cfg.SensitiveKeywords,
		AccusationKeywords: cfg.AccusationKeywords,
	}
	if cfg.LexiconPath != "" {
		extra, err := LoadLexicon(cfg.LexiconPath)
		if err != nil {
			return nil, err
		}
		lex = lex.Merge(extra)
	}
	return New(lex)
}
