package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-scout/internal/model"
	"github.com/sells-group/review-scout/internal/pipeline"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Name", "Count"},
		[][]string{{"alpha", "3"}, {"beta"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "beta")
}

func TestRenderTable_NoHeaders(t *testing.T) {
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}, nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\nb   c", 10))
	assert.Equal(t, "ñañañ...", truncate("ñañañañañañ", 8))
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "duplicate=2 quota=1", formatCounts(map[string]int{"quota": 1, "duplicate": 2}))
	assert.Empty(t, formatCounts(nil))
}

func TestFormatShortlist(t *testing.T) {
	var buf bytes.Buffer
	formatShortlist(&buf, &pipeline.ShortlistResult{
		BatchDate:  "2024-07-01",
		Candidates: 3,
		Selected: []model.Review{
			{ReviewID: "r1", HumorScore: 91, Tags: "rude_staff", SafetyLabel: model.SafetySafe, Text: "The waiter sighed at us"},
		},
		Skipped: map[string]int{"duplicate": 2},
		Paths:   []string{"out/weekly_shortlist_2024-07-01.json"},
		DryRun:  true,
	})

	out := buf.String()
	assert.Contains(t, out, "rude_staff")
	assert.Contains(t, out, "Selected 1 of 3 candidates for 2024-07-01 (dry run, store unchanged)")
	assert.Contains(t, out, "Skipped: duplicate=2")
	assert.Contains(t, out, "wrote out/weekly_shortlist_2024-07-01.json")
}

func TestFormatShortlist_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatShortlist(&buf, &pipeline.ShortlistResult{BatchDate: "2024-07-01"})
	assert.Equal(t, "No reviews selected for 2024-07-01 (0 candidates).\n", buf.String())

	buf.Reset()
	formatShortlist(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestFormatRuns(t *testing.T) {
	started := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)

	var buf bytes.Buffer
	formatRuns(&buf, []model.Run{
		{ID: "1", Command: "weekly", Status: model.RunStatusComplete, Stats: map[string]int{"shortlisted": 4}, StartedAt: started, FinishedAt: &finished},
		{ID: "2", Command: "discover", Status: model.RunStatusFailed, Error: "serpapi: 401", StartedAt: started, FinishedAt: &finished},
		{ID: "3", Command: "collect", Status: model.RunStatusRunning, StartedAt: started},
	})

	out := buf.String()
	assert.Contains(t, out, "shortlisted=4")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "serpapi: 401")
	assert.Contains(t, out, "running")
}

func TestFormatEmptyLists(t *testing.T) {
	var buf bytes.Buffer
	formatRuns(&buf, nil)
	formatStats(&buf, nil)
	formatCandidates(&buf, nil)
	assert.Equal(t, "No runs found.\nNo ingest stats recorded.\nNo candidates.\n", buf.String())
}

func TestFormatCandidates(t *testing.T) {
	var buf bytes.Buffer
	formatCandidates(&buf, []model.Review{{ReviewID: "r9", HumorScore: 70, Rating: 1, Status: model.ReviewStatusNew, Text: "Cold soup"}})
	out := buf.String()
	require.Contains(t, out, "r9")
	assert.Contains(t, out, "Cold soup")
	assert.Contains(t, out, "new")
}
