package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gingfrederik/docx"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// xlsxHeader is the column order of the spreadsheet export.
var xlsxHeader = []string{
	"review_id", "place", "score", "tags", "rating", "date", "reviewer",
	"text", "owner_reply", "why_selected", "safety", "safety_notes", "link",
}

type xlsxExporter struct{}

func (xlsxExporter) Format() string { return FormatXLSX }

func (xlsxExporter) Export(dir string, b Batch) (string, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Shortlist")
	if err != nil {
		return "", eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range b.Reviews {
		placeName := "Unknown place"
		if p, ok := b.place(r); ok && p.Name != "" {
			placeName = p.Name
		}
		row := sheet.AddRow()
		row.AddCell().SetString(r.ReviewID)
		row.AddCell().SetString(placeName)
		row.AddCell().SetInt(r.HumorScore)
		row.AddCell().SetString(r.Tags)
		row.AddCell().SetInt(r.Rating)
		row.AddCell().SetString(r.Date)
		row.AddCell().SetString(reviewerOrAnon(r))
		row.AddCell().SetString(r.Text)
		row.AddCell().SetString(r.OwnerReply)
		row.AddCell().SetString(reason(r))
		row.AddCell().SetString(string(r.SafetyLabel))
		row.AddCell().SetString(r.SafetyNotes)
		row.AddCell().SetString(r.ReviewURL)
	}

	path := filepath.Join(dir, b.fileName("xlsx"))
	if err := f.Save(path); err != nil {
		return "", eris.Wrapf(err, "xlsx: save %s", path)
	}
	return path, nil
}

type docxExporter struct{}

func (docxExporter) Format() string { return FormatDOCX }

func (docxExporter) Export(dir string, b Batch) (string, error) {
	f := docx.NewFile()

	f.AddParagraph().AddText(fmt.Sprintf("Weekly Shortlist (%s)", b.Date)).Size(20)
	f.AddParagraph()

	for _, r := range b.Reviews {
		f.AddParagraph().AddText(fmt.Sprintf("%d/100 - %s", r.HumorScore, strings.Join(tagsOrDefault(r), ", "))).Size(16)

		meta := fmt.Sprintf("Reviewer: %s | Date: %s | Rating: %d star(s)", reviewerOrAnon(r), r.Date, r.Rating)
		if p, ok := b.place(r); ok {
			meta = p.Name + " | " + meta
		}
		run := f.AddParagraph().AddText(meta)
		run.Size(10)
		run.Color("808080")

		text := r.Text
		if text == "" {
			text = "(no text)"
		}
		f.AddParagraph().AddText(text)
		if r.OwnerReply != "" {
			f.AddParagraph().AddText("Owner reply: " + r.OwnerReply)
		}
		f.AddParagraph().AddText("Why selected: " + reason(r))
		f.AddParagraph().AddText(fmt.Sprintf("Safety: %s (%s)", r.SafetyLabel.Description(), r.SafetyNotes))
		if r.ReviewURL != "" {
			link := f.AddParagraph().AddText(r.ReviewURL)
			link.Size(10)
			link.Color("0000FF")
		}
		f.AddParagraph()
	}

	path := filepath.Join(dir, b.fileName("docx"))
	if err := f.Save(path); err != nil {
		return "", eris.Wrapf(err, "docx: save %s", path)
	}
	return path, nil
}
