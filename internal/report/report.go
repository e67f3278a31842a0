// Package report renders a weekly shortlist to files.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/review-scout/internal/model"
)

// Formats supported by Write.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatXLSX     = "xlsx"
	FormatDOCX     = "docx"
)

// Batch is one shortlist ready for rendering.
type Batch struct {
	Date        string // YYYY-MM-DD
	GeneratedAt time.Time
	Reviews     []model.Review
	Places      map[string]model.Place // keyed by place id and data id
	Screenshots map[string]string      // review id to image path
}

// NewBatch stamps a batch with the date of now.
func NewBatch(reviews []model.Review, places map[string]model.Place, now time.Time) Batch {
	return Batch{
		Date:        now.Format("2006-01-02"),
		GeneratedAt: now,
		Reviews:     reviews,
		Places:      places,
	}
}

// Exporter writes one format of a batch into dir and returns the file path.
type Exporter interface {
	Format() string
	Export(dir string, b Batch) (string, error)
}

// ExporterFor returns the exporter of a format.
func ExporterFor(format string) (Exporter, error) {
	switch format {
	case FormatJSON:
		return jsonExporter{}, nil
	case FormatMarkdown:
		return markdownExporter{}, nil
	case FormatHTML:
		return htmlExporter{}, nil
	case FormatXLSX:
		return xlsxExporter{}, nil
	case FormatDOCX:
		return docxExporter{}, nil
	default:
		return nil, eris.Errorf("report: unknown format %q", format)
	}
}

// Write renders every format concurrently and returns the written paths in
// format order.
func Write(ctx context.Context, dir string, formats []string, b Batch) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", dir)
	}

	exporters := make([]Exporter, 0, len(formats))
	for _, f := range formats {
		e, err := ExporterFor(f)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, e)
	}

	paths := make([]string, len(exporters))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range exporters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := e.Export(dir, b)
			if err != nil {
				return eris.Wrapf(err, "report: export %s", e.Format())
			}
			mu.Lock()
			paths[i] = path
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (b Batch) fileName(ext string) string {
	return fmt.Sprintf("weekly_shortlist_%s.%s", b.Date, ext)
}

// place resolves the place of a review.
func (b Batch) place(r model.Review) (model.Place, bool) {
	p, ok := b.Places[r.PlaceID]
	return p, ok
}

// reason is the "why selected" line of a review.
func reason(r model.Review) string {
	if r.HumorNotes != "" {
		return r.HumorNotes
	}
	return "High humor score"
}

func tagsOrDefault(r model.Review) []string {
	if tags := r.TagList(); len(tags) > 0 {
		return tags
	}
	return []string{model.DefaultTheme}
}

func reviewerOrAnon(r model.Review) string {
	if r.ReviewerName != "" {
		return r.ReviewerName
	}
	return "Anonymous"
}

// Group is the reviews of one place.
type Group struct {
	Place    model.Place
	Known    bool
	Reviews  []model.Review
	TopScore int
}

// Name is the display name of the group's place.
func (g Group) Name() string {
	if g.Known && g.Place.Name != "" {
		return g.Place.Name
	}
	return "Unknown place"
}

// Groups buckets reviews by place. Groups are ordered by top score
// descending, then place name; reviews within a group by score descending.
func (b Batch) Groups() []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range b.Reviews {
		i, ok := index[r.PlaceID]
		if !ok {
			p, known := b.place(r)
			groups = append(groups, Group{Place: p, Known: known})
			i = len(groups) - 1
			index[r.PlaceID] = i
		}
		groups[i].Reviews = append(groups[i].Reviews, r)
		groups[i].TopScore = max(groups[i].TopScore, r.HumorScore)
	}

	for i := range groups {
		sort.SliceStable(groups[i].Reviews, func(a, c int) bool {
			return groups[i].Reviews[a].HumorScore > groups[i].Reviews[c].HumorScore
		})
	}
	sort.SliceStable(groups, func(a, c int) bool {
		if groups[a].TopScore != groups[c].TopScore {
			return groups[a].TopScore > groups[c].TopScore
		}
		return strings.ToLower(groups[a].Name()) < strings.ToLower(groups[c].Name())
	})
	return groups
}

// Summary holds the headline numbers of a batch.
type Summary struct {
	Count     int
	MeanScore float64
	TopScore  int
}

// Summarize computes the batch headline numbers.
func (b Batch) Summarize() Summary {
	s := Summary{Count: len(b.Reviews)}
	if s.Count == 0 {
		return s
	}
	total := 0
	for _, r := range b.Reviews {
		total += r.HumorScore
		s.TopScore = max(s.TopScore, r.HumorScore)
	}
	s.MeanScore = float64(int(float64(total)/float64(s.Count)*10+0.5)) / 10
	return s
}

func writeFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "report: write %s", path)
	}
	return path, nil
}
