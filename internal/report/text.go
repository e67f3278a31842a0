package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-scout/internal/model"
)

type jsonExporter struct{}

func (jsonExporter) Format() string { return FormatJSON }

func (jsonExporter) Export(dir string, b Batch) (string, error) {
	reviews := b.Reviews
	if reviews == nil {
		reviews = []model.Review{}
	}
	data, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "report: marshal json")
	}
	return writeFile(dir, b.fileName("json"), data)
}

type markdownExporter struct{}

func (markdownExporter) Format() string { return FormatMarkdown }

func (markdownExporter) Export(dir string, b Batch) (string, error) {
	return writeFile(dir, b.fileName("md"), []byte(Markdown(b)))
}

// Markdown renders the batch as a Markdown document.
func Markdown(b Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Weekly Shortlist (%s)\n\n", b.Date)
	for _, r := range b.Reviews {
		writeMarkdownReview(&sb, r)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeMarkdownReview(sb *strings.Builder, r model.Review) {
	text := r.Text
	if text == "" {
		text = "(no text)"
	}
	fmt.Fprintf(sb, "### %d/100 - %s\n", r.HumorScore, strings.Join(r.TagList(), ", "))
	fmt.Fprintf(sb, "**Reviewer:** %s\n", reviewerOrAnon(r))
	fmt.Fprintf(sb, "**Date:** %s\n", r.Date)
	fmt.Fprintf(sb, "**Rating:** %d star(s)\n\n", r.Rating)
	fmt.Fprintf(sb, "**Review:**\n%s\n", text)
	if r.OwnerReply != "" {
		fmt.Fprintf(sb, "\n**Owner reply:**\n%s\n", r.OwnerReply)
	}
	fmt.Fprintf(sb, "\n**Why selected:** %s\n", reason(r))
	fmt.Fprintf(sb, "**Safety:** %s (%s)\n", r.SafetyLabel.Description(), r.SafetyNotes)
	fmt.Fprintf(sb, "**Link:** %s\n", r.ReviewURL)
}
