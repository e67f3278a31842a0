// Package humor scores reviews for comedic value with an LLM.
package humor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/review-scout/internal/config"
	"github.com/sells-group/review-scout/internal/cost"
	"github.com/sells-group/review-scout/internal/model"
	"github.com/sells-group/review-scout/internal/resilience"
	"github.com/sells-group/review-scout/pkg/anthropic"
)

// Tags and notes used when the oracle gives no usable answer.
const (
	TagLLMError = "llm_error"

	NotesDefault      = "LLM score"
	NotesParsedScore  = "Parsed score"
	NotesParseFailure = "Parse failure"
)

// systemPrompt fixes the response shape; the user prompt carries the review.
const systemPrompt = `Return ONLY JSON with: score (integer 0-100), notes (string), tags (array of strings).`

var scoreRe = regexp.MustCompile(`\b(\d{1,3})\b`)

// Input is one review to score.
type Input struct {
	Text       string
	OwnerReply string
	Rating     int
}

// Result is the oracle verdict for one review.
type Result struct {
	Score int
	Notes string
	Tags  []string
}

// Failed reports whether the result stands in for an oracle error.
func (r Result) Failed() bool {
	return len(r.Tags) == 1 && r.Tags[0] == TagLLMError
}

// Scorer asks the Anthropic API to rate reviews. Score never fails: oracle
// and parse errors are folded into the Result.
type Scorer struct {
	ai      anthropic.Client
	cfg     config.ScoringConfig
	apiKey  string
	breaker *resilience.Breaker
	usage   *cost.Tracker
	log     *zap.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithUsageTracker records the token usage of every answered call.
func WithUsageTracker(t *cost.Tracker) Option {
	return func(s *Scorer) {
		s.usage = t
	}
}

// NewScorer creates a Scorer. apiKey is only used to scrub error messages.
func NewScorer(ai anthropic.Client, cfg config.ScoringConfig, apiKey string, opts ...Option) *Scorer {
	log := zap.L().With(zap.String("component", "humor"))
	s := &Scorer{
		ai:     ai,
		cfg:    cfg,
		apiKey: apiKey,
		log:    log,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			ResetTimeout:     time.Duration(cfg.BreakerResetSecs) * time.Second,
			OnStateChange: func(from, to resilience.BreakerState) {
				log.Warn("scoring breaker state change",
					zap.Stringer("from", from), zap.Stringer("to", to))
			},
		}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score rates one review.
func (s *Scorer) Score(ctx context.Context, in Input) Result {
	text, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (string, error) {
		return s.call(ctx, in)
	})
	if err != nil {
		s.log.Debug("scoring failed", zap.Error(err))
		return s.errorResult(err)
	}
	return parseResult(text)
}

func (s *Scorer) call(ctx context.Context, in Input) (string, error) {
	if s.cfg.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSecs)*time.Second)
		defer cancel()
	}

	temp := s.cfg.Temperature
	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: int64(s.cfg.MaxOutputTokens),
		System:    []anthropic.SystemBlock{{Text: systemPrompt, Cached: true}},
		Messages: []anthropic.Message{
			{Role: "user", Content: RenderPrompt(s.cfg.Prompt, in)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	if s.usage != nil {
		s.usage.Add(s.cfg.Model, resp.Usage)
	}
	return resp.Text(), nil
}

// RenderPrompt substitutes the review into the prompt template.
func RenderPrompt(tmpl string, in Input) string {
	return strings.NewReplacer(
		"{review_text}", strings.TrimSpace(in.Text),
		"{owner_reply}", strings.TrimSpace(in.OwnerReply),
		"{rating}", strconv.Itoa(in.Rating),
	).Replace(tmpl)
}

func (s *Scorer) errorResult(err error) Result {
	msg := err.Error()
	if s.apiKey != "" {
		msg = strings.ReplaceAll(msg, s.apiKey, "REDACTED")
	}
	notes := "LLM error: " + errorClass(err)
	if msg != "" {
		notes += " - " + msg
	}
	return Result{Score: 0, Notes: notes, Tags: []string{TagLLMError}}
}

// errorClass names the kind of failure for the notes column.
func errorClass(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, resilience.ErrBreakerOpen):
		return "CircuitOpen"
	}
	name := fmt.Sprintf("%T", eris.Cause(err))
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// parseResult turns the raw model text into a Result, salvaging a bare
// integer when the JSON is unusable.
func parseResult(text string) Result {
	payload := cleanJSON(text)
	if gjson.Valid(payload) {
		if obj := gjson.Parse(payload); obj.IsObject() {
			notes := strings.TrimSpace(obj.Get("notes").String())
			if notes == "" {
				notes = NotesDefault
			}
			return Result{
				Score: model.ClampScore(int(obj.Get("score").Int())),
				Notes: notes,
				Tags:  normalizeTags(obj.Get("tags")),
			}
		}
	}

	if m := scoreRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Result{Score: model.ClampScore(n), Notes: NotesParsedScore, Tags: []string{model.DefaultTheme}}
	}
	return Result{Score: 0, Notes: NotesParseFailure, Tags: []string{model.DefaultTheme}}
}

// cleanJSON strips markdown code fences and anything outside the outermost
// braces.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func normalizeTags(v gjson.Result) []string {
	var tags []string
	switch {
	case v.IsArray():
		for _, t := range v.Array() {
			if tag := strings.TrimSpace(t.String()); tag != "" {
				tags = append(tags, tag)
			}
		}
	case v.Type == gjson.String:
		if tag := strings.TrimSpace(v.String()); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return []string{model.DefaultTheme}
	}
	return tags
}
