package report

import (
	"bytes"
	"html/template"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-scout/internal/model"
)

type htmlExporter struct{}

func (htmlExporter) Format() string { return FormatHTML }

func (htmlExporter) Export(dir string, b Batch) (string, error) {
	data, err := HTML(dir, b)
	if err != nil {
		return "", err
	}
	name := "weekly_shortlist_" + b.GeneratedAt.Format("2006-01-02_15-04") + ".html"
	return writeFile(dir, name, data)
}

type htmlReview struct {
	model.Review
	Reviewer   string
	Tags       []string
	Reason     string
	Safety     string
	Screenshot string
}

type htmlGroup struct {
	Title   string
	URL     string
	Reviews []htmlReview
}

type htmlPage struct {
	Date    string
	Summary Summary
	Groups  []htmlGroup
}

// HTML renders the batch as a standalone page grouped by place. Screenshot
// paths are made relative to dir when possible.
func HTML(dir string, b Batch) ([]byte, error) {
	page := htmlPage{Date: b.Date, Summary: b.Summarize()}
	for _, g := range b.Groups() {
		hg := htmlGroup{Title: g.Name()}
		if g.Known {
			if g.Place.Address != "" {
				hg.Title += " · " + g.Place.Address
			}
			hg.URL = g.Place.MapsURL()
		}
		for _, r := range g.Reviews {
			hg.Reviews = append(hg.Reviews, htmlReview{
				Review:     r,
				Reviewer:   reviewerOrAnon(r),
				Tags:       tagsOrDefault(r),
				Reason:     r.HumorNotes,
				Safety:     string(r.SafetyLabel),
				Screenshot: relPath(dir, b.Screenshots[r.ReviewID]),
			})
		}
		page.Groups = append(page.Groups, hg)
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, page); err != nil {
		return nil, eris.Wrap(err, "report: render html")
	}
	return buf.Bytes(), nil
}

func relPath(dir, path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(dir, path); err == nil && !filepath.IsAbs(rel) && rel[0] != '.' {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

var pageTmpl = template.Must(template.New("shortlist").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Weekly Shortlist {{.Date}}</title>
  <style>
    :root { --bg: #eef3f9; --card: #f9fbff; --ink: #0d1b2a; --muted: #5b6b7d; --accent: #1b6aa9; --border: #d6e2f0; }
    * { box-sizing: border-box; }
    body { font-family: sans-serif; background: var(--bg); color: var(--ink); margin: 0; }
    header { padding: 36px 24px 32px; background: #0b1f36; color: #eef5ff; border-bottom: 4px solid var(--accent); }
    header h1 { margin: 0; font-size: 32px; }
    header p { margin: 8px 0 0; color: #cddff0; }
    main { padding: 28px 20px 48px; max-width: 1020px; margin: 0 auto; }
    .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 16px; margin-bottom: 26px; }
    .summary-card { background: #f2f7ff; border: 1px solid var(--border); border-radius: 14px; padding: 16px; }
    .summary-card h3 { margin: 0 0 8px; font-size: 13px; color: var(--muted); }
    .summary-card .value { font-size: 24px; }
    .group { margin-bottom: 34px; border: 1px solid var(--border); border-radius: 18px; padding: 18px; background: #f4f8ff; }
    .group-header { border-bottom: 1px solid var(--border); padding-bottom: 14px; margin-bottom: 18px; }
    .group-title { font-size: 26px; margin: 0 0 6px; }
    .group-meta { color: var(--muted); }
    .review { background: var(--card); border: 1px solid var(--border); padding: 26px; margin-bottom: 26px; border-radius: 16px; }
    .score { font-size: 28px; font-weight: 700; color: var(--accent); text-decoration: none; }
    .meta { display: flex; flex-wrap: wrap; gap: 16px; margin-top: 12px; color: var(--muted); font-size: 14px; }
    .meta strong { color: var(--ink); }
    .tags { margin-top: 14px; display: flex; gap: 8px; flex-wrap: wrap; }
    .tag { background: #dcecff; color: #1f4a7a; padding: 6px 12px; border-radius: 999px; font-size: 12px; font-weight: 600; }
    .review-text { margin-top: 18px; }
    .label { font-weight: 700; margin-bottom: 8px; }
    .block { white-space: pre-wrap; background: #eff5ff; padding: 14px; border: 1px solid var(--border); border-radius: 10px; }
    .links { margin-top: 14px; }
    .cta { background: var(--accent); color: #eef5ff; padding: 10px 16px; border-radius: 999px; text-decoration: none; font-weight: 700; }
    .screenshot img { max-width: 100%; border: 1px solid var(--border); margin-top: 16px; border-radius: 12px; }
  </style>
</head>
<body>
  <header><h1>Weekly Shortlist ({{.Date}})</h1><p>This week's reviews with the most comedic potential.</p></header>
  <main>
    <section class="summary">
      <div class="summary-card"><h3>Selected reviews</h3><div class="value">{{.Summary.Count}}</div></div>
      <div class="summary-card"><h3>Mean score</h3><div class="value">{{.Summary.MeanScore}}</div></div>
      <div class="summary-card"><h3>Top score</h3><div class="value">{{.Summary.TopScore}}</div></div>
      <div class="summary-card"><h3>Date</h3><div class="value">{{.Date}}</div></div>
    </section>
{{- range .Groups}}
<section class="group">
  <div class="group-header">
    <h2 class="group-title">{{if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</h2>
    <div class="group-meta">Reviews ordered by score (desc)</div>
  </div>
{{- range .Reviews}}
  <article class="review">
    <div class="score-wrap">{{if .ReviewURL}}<a class="score" href="{{.ReviewURL}}">{{.HumorScore}}/100</a>{{else}}<span class="score">{{.HumorScore}}/100</span>{{end}}</div>
    <div class="meta">
      <span><strong>Reviewer:</strong> {{if .ReviewerProfileURL}}<a href="{{.ReviewerProfileURL}}">{{.Reviewer}}</a>{{else}}{{.Reviewer}}{{end}}</span>
      <span><strong>Date:</strong> {{.Date}}</span>
      <span><strong>Rating:</strong> {{.Rating}} star(s)</span>
    </div>
    <div class="meta">
      <span><strong>Safety:</strong> {{.Safety}} ({{.SafetyNotes}})</span>
      <span><strong>Why selected:</strong> {{.Reason}}</span>
    </div>
    <div class="tags">{{range .Tags}}<span class="tag">{{.}}</span> {{end}}</div>
    <section class="review-text">
      <div class="label">Review</div>
      <div class="block">{{if .Text}}{{.Text}}{{else}}(no text){{end}}</div>
    </section>
    {{- if .OwnerReply}}
    <section class="review-text">
      <div class="label">Owner reply</div>
      <div class="block">{{.OwnerReply}}</div>
    </section>
    {{- end}}
    {{- if .ReviewURL}}
    <div class="links"><a class="cta" href="{{.ReviewURL}}">View review on Google Maps</a></div>
    {{- end}}
    {{- if .Screenshot}}
    <div class="screenshot"><img src="{{.Screenshot}}" alt="Screenshot" /></div>
    {{- end}}
  </article>
{{- end}}
</section>
{{- else}}
<p>No reviews selected.</p>
{{- end}}
  </main>
</body>
</html>
`))
